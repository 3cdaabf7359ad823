// Package interaction expone las operaciones sobre interacciones que usan
// los flujos OTP, wallet y OAuth. El almacenamiento es un
// repository.InteractionRepository (postgres, redis o memoria).
package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/metrics"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/segmentio/ksuid"
)

var (
	// ErrNotFound la interacción no existe o expiró.
	ErrNotFound = errors.New("interaction not found or expired")
	// ErrAlreadyConsumed la interacción ya no está disponible para consumir.
	// Un consumo concurrente perdido también devuelve este error.
	ErrAlreadyConsumed = errors.New("interaction already consumed")
)

// Service define las operaciones del InteractionStore.
type Service interface {
	Create(ctx context.Context, details repository.InteractionDetails, ttl time.Duration) (*repository.Interaction, error)
	FindActiveByID(ctx context.Context, id string) (*repository.Interaction, error)
	// FindActive devuelve la interacción vigente más nueva del tipo, con esa
	// lookup key, que cumpla match (nil = cualquiera).
	FindActive(ctx context.Context, t repository.InteractionType, lookupKey string, match func(*repository.Interaction) bool) (*repository.Interaction, error)
	Mutate(ctx context.Context, id string, patch func(*repository.InteractionDetails) error) (*repository.Interaction, error)
	Consume(ctx context.Context, id string) error
	// ConsumeWith ejecuta fn con la interacción bloqueada y la borra solo si
	// fn termina sin error.
	ConsumeWith(ctx context.Context, id string, fn func(ctx context.Context, ix *repository.Interaction) error) error
	// Sweep borra interacciones vencidas antes de now.
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// Deps contiene las dependencias del service.
type Deps struct {
	Repo repository.InteractionRepository
}

type service struct {
	repo repository.InteractionRepository
}

// NewService crea el InteractionStore.
func NewService(d Deps) Service {
	return &service{repo: d.Repo}
}

func (s *service) Create(ctx context.Context, details repository.InteractionDetails, ttl time.Duration) (*repository.Interaction, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", repository.ErrInvalidInput)
	}
	rec, err := s.repo.Create(ctx, repository.CreateInteractionInput{
		ID:      ksuid.New().String(),
		Details: details,
		TTL:     ttl,
	})
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Debug("interaction created",
		logger.Layer("service"),
		logger.InteractionID(rec.ID),
		logger.InteractionType(string(details.Type)))
	return rec, nil
}

func (s *service) FindActiveByID(ctx context.Context, id string) (*repository.Interaction, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	rec, err := s.repo.GetActive(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *service) FindActive(ctx context.Context, t repository.InteractionType, lookupKey string, match func(*repository.Interaction) bool) (*repository.Interaction, error) {
	if lookupKey == "" {
		return nil, ErrNotFound
	}
	list, err := s.repo.ListActiveByLookup(ctx, t, lookupKey)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if match == nil || match(&list[i]) {
			return &list[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *service) Mutate(ctx context.Context, id string, patch func(*repository.InteractionDetails) error) (*repository.Interaction, error) {
	rec, err := s.repo.Mutate(ctx, id, patch)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *service) Consume(ctx context.Context, id string) error {
	return s.ConsumeWith(ctx, id, nil)
}

func (s *service) ConsumeWith(ctx context.Context, id string, fn func(ctx context.Context, ix *repository.Interaction) error) error {
	var (
		typ   repository.InteractionType
		fnErr error
	)
	err := s.repo.ConsumeWith(ctx, id, func(txCtx context.Context, rec *repository.Interaction) error {
		typ = rec.Details.Type
		if fn != nil {
			fnErr = fn(txCtx, rec)
		}
		return fnErr
	})
	if err != nil {
		// ErrNotFound sin error del fn: la fila ya no estaba al bloquear o
		// otro request la borró antes del commit.
		if fnErr == nil && repository.IsNotFound(err) {
			return ErrAlreadyConsumed
		}
		return err
	}
	metrics.InteractionsConsumed.WithLabelValues(string(typ)).Inc()
	logger.From(ctx).Debug("interaction consumed",
		logger.Layer("service"),
		logger.InteractionID(id),
		logger.InteractionType(string(typ)))
	return nil
}

func (s *service) Sweep(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpired(ctx, now)
}
