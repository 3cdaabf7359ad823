package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
)

// HTTPSMSGateway hace POST form-encoded al endpoint del proveedor SMS
// (username, to, message, from) autenticando con el header apiKey.
type HTTPSMSGateway struct {
	Client *http.Client
}

func NewHTTPSMSGateway(timeout time.Duration) *HTTPSMSGateway {
	return &HTTPSMSGateway{Client: &http.Client{Timeout: timeout}}
}

func (g *HTTPSMSGateway) SendSMS(ctx context.Context, creds repository.SMSProvider, msg Message) error {
	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("to", msg.To)
	form.Set("message", msg.Body)
	if creds.SenderID != "" {
		form.Set("from", creds.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", creds.APIKey)

	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.From(ctx).Warn("sms gateway rejected message",
			logger.Component("notify.sms"), logger.Status(resp.StatusCode))
		return fmt.Errorf("sms: gateway status %d", resp.StatusCode)
	}
	return nil
}
