// Package notify entrega mensajes (códigos OTP) por email o SMS usando las
// credenciales del tenant o de la aplicación.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
)

var (
	ErrNoCredentials = errors.New("notify: missing provider credentials")
	ErrNoGateway     = errors.New("notify: no gateway for channel")
)

// Credentials es el set resuelto para un envío. Solo se usa el del canal.
type Credentials struct {
	Email *repository.EmailProvider
	SMS   *repository.SMSProvider
}

// Message es un mensaje de texto plano; Subject solo aplica a email.
type Message struct {
	To      string
	Subject string
	Body    string
	// HTML alternativo; vacío = solo texto.
	HTML string
}

// EmailGateway envía emails transaccionales.
type EmailGateway interface {
	SendEmail(ctx context.Context, creds repository.EmailProvider, msg Message) error
}

// SMSGateway envía SMS.
type SMSGateway interface {
	SendSMS(ctx context.Context, creds repository.SMSProvider, msg Message) error
}

// Dispatcher elige el gateway según el canal.
type Dispatcher struct {
	Email EmailGateway
	SMS   SMSGateway
}

func (d *Dispatcher) Send(ctx context.Context, ch repository.Channel, creds Credentials, msg Message) error {
	switch ch {
	case repository.ChannelEmail:
		if !creds.Email.Usable() {
			return ErrNoCredentials
		}
		if d.Email == nil {
			return ErrNoGateway
		}
		return d.Email.SendEmail(ctx, *creds.Email, msg)
	case repository.ChannelPhone:
		if !creds.SMS.Usable() {
			return ErrNoCredentials
		}
		if d.SMS == nil {
			return ErrNoGateway
		}
		return d.SMS.SendSMS(ctx, *creds.SMS, msg)
	default:
		return fmt.Errorf("notify: unknown channel %q", ch)
	}
}

// LogGateway no envía nada: deja el mensaje en el log (dev).
type LogGateway struct{}

func (LogGateway) SendEmail(ctx context.Context, creds repository.EmailProvider, msg Message) error {
	logger.From(ctx).Info("email (log gateway)",
		logger.String("from", creds.Sender), logger.String("to", msg.To), logger.String("subject", msg.Subject))
	return nil
}

func (LogGateway) SendSMS(ctx context.Context, _ repository.SMSProvider, msg Message) error {
	logger.From(ctx).Info("sms (log gateway)", logger.String("to", msg.To))
	return nil
}
