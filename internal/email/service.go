package email

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/agenda-api/internal/model"
)

type Service interface {
	SendSubscriptionActivated(ctx context.Context, to string, expiresAt time.Time) error
}

// Sender delivers composed messages. *gomail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Location *time.Location
}

type SMTPService struct {
	sender Sender
	from   string
	loc    *time.Location
}

func NewSMTPService(cfg Config) (*SMTPService, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host and from address are required")
	}
	return NewService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, cfg.Location), nil
}

func NewService(sender Sender, from string, loc *time.Location) *SMTPService {
	if loc == nil {
		loc = time.UTC
	}
	return &SMTPService{sender: sender, from: from, loc: loc}
}

func (s *SMTPService) SendSubscriptionActivated(ctx context.Context, to string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your agenda subscription is active")
	m.SetBody("text/plain", fmt.Sprintf(
		"Your payment was confirmed and your agenda is available until %s.\n",
		expiresAt.In(s.loc).Format("02/01/2006 15:04"),
	))

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send subscription e-mail: %w", err)
	}
	return nil
}

// SubscriptionActivatedHandler returns a broker message handler that e-mails
// the payer of each activated subscription. Events without a payer address
// are skipped.
func SubscriptionActivatedHandler(svc Service) func(ctx context.Context, payload []byte) error {
	return func(ctx context.Context, payload []byte) error {
		var event model.SubscriptionActivatedPayload
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("malformed %s payload: %w", model.EventSubscriptionActivated, err)
		}
		if event.PayerEmail == "" {
			return nil
		}
		return svc.SendSubscriptionActivated(ctx, event.PayerEmail, event.ExpiresAt)
	}
}
