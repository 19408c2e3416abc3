package content

import "testing"

func TestComposerCompose(t *testing.T) {
	t.Parallel()

	composer := NewComposer("Stretch", "Stand up and stretch.")

	testCases := []struct {
		name  string
		input string
		want  Message
	}{
		{name: "empty input uses default body", input: "", want: Message{Title: "Stretch", Body: "Stand up and stretch."}},
		{name: "blank input is echoed", input: "   ", want: Message{Title: "Stretch", Body: "   "}},
		{name: "input is echoed", input: "drink water", want: Message{Title: "Stretch", Body: "drink water"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := composer.Compose(tc.input); got != tc.want {
				t.Fatalf("Compose(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

func TestNewComposerDefaults(t *testing.T) {
	t.Parallel()

	got := NewComposer("", " ").Compose("")
	want := Message{Title: DefaultTitle, Body: DefaultBody}
	if got != want {
		t.Fatalf("Compose() = %+v, want %+v", got, want)
	}
}

func TestComposerToast(t *testing.T) {
	t.Parallel()

	composer := NewComposer("", "")

	if got := composer.Toast("Hi", ""); got != (Message{Title: "Hi", Body: DefaultBody}) {
		t.Fatalf("Toast() = %+v", got)
	}
	if got := composer.Toast("", "there"); got != (Message{Title: DefaultTitle, Body: "there"}) {
		t.Fatalf("Toast() = %+v", got)
	}
}
