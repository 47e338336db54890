// Package mail sends plain-text messages over authenticated SMTP.
package mail

import (
	"context"

	"github.com/rotisserie/eris"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From defaults to Username.
	From string
}

// Message is one outbound email.
type Message struct {
	To      string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"message"`
}

// Sender delivers messages through a single SMTP relay.
type Sender struct {
	client *gomail.Client
	from   string
	log    *zap.Logger
}

// NewSender creates a Sender. No connection is made until Send.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.Host == "" {
		return nil, eris.New("mail: host is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, eris.New("mail: username and password are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	c, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return nil, eris.Wrap(err, "mail: create client")
	}

	return &Sender{
		client: c,
		from:   cfg.From,
		log:    zap.L().With(zap.String("component", "mail.sender")),
	}, nil
}

// Send delivers msg.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return eris.Wrapf(err, "mail: send to %s", msg.To)
	}
	s.log.Info("email sent", zap.String("to", msg.To))
	return nil
}

func (s *Sender) build(msg Message) (*gomail.Msg, error) {
	if msg.To == "" {
		return nil, eris.New("mail: recipient is required")
	}
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, eris.Wrap(err, "mail: set from")
	}
	if err := m.To(msg.To); err != nil {
		return nil, eris.Wrap(err, "mail: set to")
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}
