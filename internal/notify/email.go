package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	mail "github.com/go-mail/mail"
)

// SMTPGateway envía por el relay SMTP del proveedor transaccional. La API
// key del tenant/app es la password SMTP y Sender el From.
type SMTPGateway struct {
	Host               string
	Port               int
	Username           string // usuario fijo del relay (ej: "apikey")
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool

	send func(d *mail.Dialer, m *mail.Message) error
}

func NewSMTPGateway(host string, port int, username, tlsMode string) *SMTPGateway {
	if username == "" {
		username = "apikey"
	}
	if tlsMode == "" {
		tlsMode = "auto"
	}
	return &SMTPGateway{Host: host, Port: port, Username: username, TLSMode: tlsMode}
}

func (g *SMTPGateway) message(creds repository.EmailProvider, msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", creds.Sender)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return m
}

func (g *SMTPGateway) dialer(creds repository.EmailProvider) *mail.Dialer {
	d := mail.NewDialer(g.Host, g.Port, g.Username, creds.APIKey)
	d.TLSConfig = &tls.Config{
		ServerName:         g.Host,
		InsecureSkipVerify: g.InsecureSkipVerify, // solo dev
	}
	switch g.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: g.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}
	return d
}

func (g *SMTPGateway) SendEmail(ctx context.Context, creds repository.EmailProvider, msg Message) error {
	log := logger.From(ctx).With(
		logger.Component("notify.smtp"),
		logger.String("host", g.Host),
		logger.Int("port", g.Port),
	)

	send := g.send
	if send == nil {
		send = func(d *mail.Dialer, m *mail.Message) error { return d.DialAndSend(m) }
	}
	if err := send(g.dialer(creds), g.message(creds, msg)); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug("email sent")
	return nil
}
