package notifier_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/devenvgo/devenv/pkg/notifier"
)

type recorder struct {
	titles   []string
	messages []string
	err      error
}

func (r *recorder) send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func TestNotifier_Success(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{250 * time.Millisecond, "gc finished in 250ms"},
		{1500 * time.Millisecond, "gc finished in 1.5s"},
		{125 * time.Second, "gc finished in 2m5s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			rec := &recorder{}
			n := notifier.New(notifier.Config{Enabled: true, Send: rec.send}, nil)

			n.NotifySuccess("gc", tt.duration)

			if len(rec.messages) != 1 || rec.messages[0] != tt.want {
				t.Errorf("messages = %v, want %q", rec.messages, tt.want)
			}
		})
	}
}

func TestNotifier_Failure(t *testing.T) {
	rec := &recorder{err: errors.New("no dbus")}
	n := notifier.New(notifier.Config{Enabled: true, Send: rec.send}, nil)

	n.NotifyFailure("test", errors.New("tests failed"))

	if len(rec.messages) != 1 || !strings.Contains(rec.messages[0], "test failed: tests failed") {
		t.Errorf("unexpected messages %v", rec.messages)
	}
}

func TestNotifier_Disabled(t *testing.T) {
	rec := &recorder{}
	n := notifier.New(notifier.Config{Send: rec.send}, nil)

	n.NotifySuccess("build", time.Second)
	n.NotifyFailure("build", errors.New("x"))

	if len(rec.messages) != 0 {
		t.Errorf("disabled notifier sent %v", rec.messages)
	}

	var nilNotifier *notifier.Notifier
	nilNotifier.NotifySuccess("build", time.Second)
}
