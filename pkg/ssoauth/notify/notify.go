// Package notify implements the notify dispatcher (C8): it renders the
// three outbound emails the engine triggers (password reset, email
// update, password update) and submits them to notifx, never blocking
// the engine call that triggered them and never failing it either.
//
// Grounded on the teacher's notifx.Client/EmailSender split, reused
// unmodified (cmd/ssoauthd wires the console provider); only the
// message content is new.
package notify

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/manifesto/pkg/logx"
	"github.com/Abraxas-365/manifesto/pkg/notifx"
	"github.com/Abraxas-365/manifesto/pkg/ssoauth/model"
)

// Dispatcher fire-and-forgets the three account emails the engine
// emits. Each Send* method spawns its own goroutine so the caller never
// waits on mail delivery; a failure is logged and otherwise swallowed —
// the engine operation that triggered it has already committed.
type Dispatcher struct {
	client      *notifx.Client
	fromAddress string
	fromName    string
}

func New(client *notifx.Client, fromAddress, fromName string) *Dispatcher {
	return &Dispatcher{client: client, fromAddress: fromAddress, fromName: fromName}
}

func (d *Dispatcher) from() string {
	if d.fromName == "" {
		return d.fromAddress
	}
	return fmt.Sprintf("%s <%s>", d.fromName, d.fromAddress)
}

func (d *Dispatcher) send(ctx context.Context, msg notifx.EmailMessage) {
	msg.From = d.from()
	go func() {
		if err := d.client.SendEmail(context.Background(), msg); err != nil {
			logx.WithFields(logx.Fields{"to": msg.To, "subject": msg.Subject}).
				WithError(err).Warnf("notify: send failed")
		}
	}()
	_ = ctx
}

func (d *Dispatcher) SendResetPassword(ctx context.Context, svc model.Service, user model.User, resetToken string) {
	d.send(ctx, notifx.EmailMessage{
		To:      []string{user.Email},
		Subject: fmt.Sprintf("%s: reset your password", svc.Name),
		TextBody: fmt.Sprintf(
			"A password reset was requested for your %s account.\n\nReset token: %s\n\nIf you did not request this, ignore this email.",
			svc.Name, resetToken,
		),
	})
}

func (d *Dispatcher) SendUpdateEmail(ctx context.Context, svc model.Service, user model.User, oldEmail, revokeToken string) {
	d.send(ctx, notifx.EmailMessage{
		To:      []string{oldEmail},
		Subject: fmt.Sprintf("%s: your email address changed", svc.Name),
		TextBody: fmt.Sprintf(
			"Your %s account email was changed from %s to %s.\n\nIf you did not make this change, revoke it with this token: %s",
			svc.Name, oldEmail, user.Email, revokeToken,
		),
	})
}

func (d *Dispatcher) SendUpdatePassword(ctx context.Context, svc model.Service, user model.User, revokeToken string) {
	d.send(ctx, notifx.EmailMessage{
		To:      []string{user.Email},
		Subject: fmt.Sprintf("%s: your password changed", svc.Name),
		TextBody: fmt.Sprintf(
			"Your %s account password was changed.\n\nIf you did not make this change, revoke it with this token: %s",
			svc.Name, revokeToken,
		),
	})
}
