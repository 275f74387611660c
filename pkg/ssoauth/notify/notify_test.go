package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/notifx"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/notify"
)

// capturingSender records every message handed to it on a channel, since
// Dispatcher fires sends from their own goroutine.
type capturingSender struct {
	sent chan notifx.EmailMessage
}

func newCapturingSender() *capturingSender {
	return &capturingSender{sent: make(chan notifx.EmailMessage, 4)}
}

func (s *capturingSender) SendEmail(_ context.Context, msg notifx.EmailMessage, _ ...notifx.Option) error {
	s.sent <- msg
	return nil
}

func waitForMessage(t *testing.T, ch chan notifx.EmailMessage) notifx.EmailMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched email")
		return notifx.EmailMessage{}
	}
}

func TestSendResetPasswordIncludesTheToken(t *testing.T) {
	sender := newCapturingSender()
	d := notify.New(notifx.NewClient(sender), "noreply@acme.test", "Acme")

	svc := model.Service{Name: "Acme"}
	user := model.User{Email: "ada@example.com"}
	d.SendResetPassword(context.Background(), svc, user, "reset-tok-123")

	msg := waitForMessage(t, sender.sent)
	if len(msg.To) != 1 || msg.To[0] != user.Email {
		t.Fatalf("recipient mismatch: got %v", msg.To)
	}
	if msg.From != "Acme <noreply@acme.test>" {
		t.Fatalf("from mismatch: got %q", msg.From)
	}
	if !contains(msg.TextBody, "reset-tok-123") {
		t.Fatalf("body should include the reset token: %q", msg.TextBody)
	}
}

func TestSendUpdateEmailGoesToTheOldAddress(t *testing.T) {
	sender := newCapturingSender()
	d := notify.New(notifx.NewClient(sender), "noreply@acme.test", "Acme")

	svc := model.Service{Name: "Acme"}
	user := model.User{Email: "new@example.com"}
	d.SendUpdateEmail(context.Background(), svc, user, "old@example.com", "revoke-tok")

	msg := waitForMessage(t, sender.sent)
	if len(msg.To) != 1 || msg.To[0] != "old@example.com" {
		t.Fatalf("update-email notice must go to the old address, got %v", msg.To)
	}
	if !contains(msg.TextBody, "revoke-tok") {
		t.Fatalf("body should include the revoke token: %q", msg.TextBody)
	}
}

func TestFromWithoutNameIsJustTheAddress(t *testing.T) {
	sender := newCapturingSender()
	d := notify.New(notifx.NewClient(sender), "noreply@acme.test", "")

	d.SendUpdatePassword(context.Background(), model.Service{Name: "Acme"}, model.User{Email: "a@example.com"}, "tok")
	msg := waitForMessage(t, sender.sent)
	if msg.From != "noreply@acme.test" {
		t.Fatalf("from should be the bare address when no name is configured, got %q", msg.From)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
