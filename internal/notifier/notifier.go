// Package notifier mails submission reports.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/digest"
	"github.com/ibeckermayer/postbot/internal/notifier/providers"
	"github.com/ibeckermayer/postbot/internal/store"
	"github.com/ibeckermayer/postbot/internal/telemetry"
)

// historyRows caps the rows in a history report.
const historyRows = 50

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, plainBody string) error
}

// Notifier handles sending submission reports
type Notifier struct {
	sender  Sender
	builder *digest.Builder
	to      string
	now     func() time.Time
}

// New creates a notifier mailing to with sender.
func New(sender Sender, to string) (*Notifier, error) {
	b, err := digest.New(historyRows)
	if err != nil {
		return nil, err
	}
	return &Notifier{sender: sender, builder: b, to: to, now: time.Now}, nil
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.EmailConfig) (*Notifier, error) {
	var sender Sender
	switch cfg.Provider {
	case "smtp", "":
		sender = providers.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.FromAddr)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}
	return New(sender, cfg.ToAddr)
}

// NotifySubmission mails the outcome of one submission.
func (n *Notifier) NotifySubmission(ctx context.Context, sub store.Submission) error {
	return n.send(ctx, "post finished", []store.Submission{sub})
}

// SendHistory mails a report of subs.
func (n *Notifier) SendHistory(ctx context.Context, subs []store.Submission) error {
	return n.send(ctx, "recent posts", subs)
}

func (n *Notifier) send(ctx context.Context, title string, subs []store.Submission) error {
	ctx, span := telemetry.Start(ctx, "notifier.send")
	defer span.End()

	d, err := n.builder.Build(title, subs, n.now())
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, n.to, d.Subject, d.HTMLBody, d.PlainBody); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
