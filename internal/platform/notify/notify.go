// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify hands outbound mail to the delivery pipeline.

The auth core never talks SMTP. It publishes a [MailJob] on a JetStream subject
and an external worker renders and sends it. Delivery is best effort from the
caller's point of view: publish failures are returned, and the auth flows log
and swallow them.
*/
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Kind identifies the template the mail worker renders.
type Kind string

const (
	KindVerificationCode  Kind = "verification_code"
	KindWelcome           Kind = "welcome"
	KindPasswordResetLink Kind = "password_reset_link"
)

// MailJob is the JSON payload published for the mail worker.
type MailJob struct {
	Kind        Kind      `json:"kind"`
	To          string    `json:"to"`
	Code        string    `json:"code,omitempty"`
	Link        string    `json:"link,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// # JetStream Notifier

// NATSNotifier publishes mail jobs to a JetStream subject.
type NATSNotifier struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
}

// NewNATSNotifier connects to url and prepares a JetStream context.
func NewNATSNotifier(url, subject string, opts ...nats.Option) (*NATSNotifier, error) {
	if subject == "" {
		return nil, errors.New("notify: empty subject")
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: connect failed: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: jetstream unavailable: %w", err)
	}

	return &NATSNotifier{conn: conn, js: js, subject: subject}, nil
}

// Close drains the connection, falling back to a hard close.
func (notifier *NATSNotifier) Close() {
	if notifier == nil {
		return
	}
	if err := notifier.conn.Drain(); err != nil {
		notifier.conn.Close()
	}
}

// Ping reports whether the connection to the server is up.
func (notifier *NATSNotifier) Ping(ctx context.Context) error {
	if status := notifier.conn.Status(); status != nats.CONNECTED {
		return fmt.Errorf("notify: connection %s", status)
	}
	if err := notifier.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("notify: flush failed: %w", err)
	}
	return nil
}

// SendVerificationCode publishes a verification code mail.
func (notifier *NATSNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	return notifier.publish(ctx, MailJob{Kind: KindVerificationCode, To: email, Code: code})
}

// SendWelcome publishes a welcome mail.
func (notifier *NATSNotifier) SendWelcome(ctx context.Context, email string) error {
	return notifier.publish(ctx, MailJob{Kind: KindWelcome, To: email})
}

// SendPasswordResetLink publishes a password reset mail.
func (notifier *NATSNotifier) SendPasswordResetLink(ctx context.Context, email, link string) error {
	return notifier.publish(ctx, MailJob{Kind: KindPasswordResetLink, To: email, Link: link})
}

func (notifier *NATSNotifier) publish(ctx context.Context, job MailJob) error {
	job.RequestedAt = time.Now().UTC()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("notify: encode %s: %w", job.Kind, err)
	}

	if _, err := notifier.js.Publish(notifier.subject, data, nats.Context(ctx), nats.MsgId(uuid.NewString())); err != nil {
		return fmt.Errorf("notify: publish %s: %w", job.Kind, err)
	}
	return nil
}

// # Log Notifier

// LogNotifier records that a mail would have been sent. It is used when no
// NATS_URL is configured. Codes and links are never written to the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a [LogNotifier].
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendVerificationCode logs the event.
func (notifier *LogNotifier) SendVerificationCode(ctx context.Context, email, _ string) error {
	notifier.log(ctx, KindVerificationCode, email)
	return nil
}

// SendWelcome logs the event.
func (notifier *LogNotifier) SendWelcome(ctx context.Context, email string) error {
	notifier.log(ctx, KindWelcome, email)
	return nil
}

// SendPasswordResetLink logs the event.
func (notifier *LogNotifier) SendPasswordResetLink(ctx context.Context, email, _ string) error {
	notifier.log(ctx, KindPasswordResetLink, email)
	return nil
}

func (notifier *LogNotifier) log(ctx context.Context, kind Kind, email string) {
	notifier.logger.InfoContext(ctx, "mail_job_skipped",
		slog.String("kind", string(kind)),
		slog.String("to", MaskEmail(email)),
	)
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
