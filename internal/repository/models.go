package repository

import (
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
)

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID         string  `gorm:"type:uuid;primaryKey"`
	ReminderID string  `gorm:"type:varchar(64);not null"`
	DedupeKey  string  `gorm:"type:varchar(255)"`
	Provider   string  `gorm:"type:varchar(20);not null"`
	Success    bool    `gorm:"not null"`
	StatusCode *int    `gorm:"type:int"`
	MessageID  *string `gorm:"type:varchar(255)"`
	Error      *string `gorm:"type:text"`
	CreatedAt  time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:         a.ID,
		ReminderID: a.ReminderID,
		DedupeKey:  a.DedupeKey,
		Provider:   a.Provider,
		Success:    a.Success,
		StatusCode: a.StatusCode,
		MessageID:  a.MessageID,
		Error:      a.Error,
		CreatedAt:  a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:         m.ID,
		ReminderID: m.ReminderID,
		DedupeKey:  m.DedupeKey,
		Provider:   m.Provider,
		Success:    m.Success,
		StatusCode: m.StatusCode,
		MessageID:  m.MessageID,
		Error:      m.Error,
		CreatedAt:  m.CreatedAt,
	}
}
