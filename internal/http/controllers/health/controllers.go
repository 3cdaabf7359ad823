// Package health contiene el readiness check.
package health

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/http/helpers"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
)

// Pinger es cualquier dependencia que sabe responder un ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controllers agrupa los controllers de health.
type Controllers struct {
	Health *HealthController
}

// NewControllers arma el agregador. Un Pinger nil se omite.
func NewControllers(checks map[string]Pinger) *Controllers {
	return &Controllers{Health: NewHealthController(checks)}
}

type HealthController struct {
	checks  map[string]Pinger
	timeout time.Duration
}

func NewHealthController(checks map[string]Pinger) *HealthController {
	return &HealthController{checks: checks, timeout: 2 * time.Second}
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Readyz GET /readyz: 200 si todas las dependencias responden, 503 si no.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	res := readyResponse{Status: "ok", Checks: make(map[string]string, len(c.checks))}
	for name, p := range c.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
			res.Status = "degraded"
			res.Checks[name] = "down"
			continue
		}
		res.Checks[name] = "up"
	}

	if res.Status != "ok" {
		w.Header().Set("Retry-After", "5")
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail(downList(res.Checks)))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

func downList(checks map[string]string) string {
	var down []string
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if checks[name] == "down" {
			down = append(down, name)
		}
	}
	return strings.Join(down, ",")
}
