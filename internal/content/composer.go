// Package content builds reminder titles and bodies.
package content

import "strings"

const (
	DefaultTitle = "Reminder"
	DefaultBody  = "Time to take a short break."
)

type Message struct {
	Title string
	Body  string
}

// Composer echoes a non-empty input as the body, falling back to its defaults.
type Composer struct {
	title string
	body  string
}

func NewComposer(title, body string) *Composer {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	if strings.TrimSpace(body) == "" {
		body = DefaultBody
	}
	return &Composer{title: title, body: body}
}

func (c *Composer) Compose(input string) Message {
	msg := Message{Title: c.title, Body: c.body}
	if input != "" {
		msg.Body = input
	}
	return msg
}

// Toast fills blank fields of a caller-supplied message with the defaults.
func (c *Composer) Toast(title, body string) Message {
	msg := Message{Title: title, Body: body}
	if strings.TrimSpace(msg.Title) == "" {
		msg.Title = c.title
	}
	if strings.TrimSpace(msg.Body) == "" {
		msg.Body = c.body
	}
	return msg
}
