package pg

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testStore abre un store contra STORAGE_DSN y aplica migraciones.
func testStore(t *testing.T, maxConns int) *Store {
	t.Helper()
	if os.Getenv("STORAGE_DRIVER") != "postgres" || os.Getenv("STORAGE_DSN") == "" {
		t.Skip("requires STORAGE_DRIVER=postgres and STORAGE_DSN")
	}
	ctx := context.Background()
	s, err := New(ctx, os.Getenv("STORAGE_DSN"), Options{MaxConns: maxConns})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	_, err = s.Migrate(ctx)
	require.NoError(t, err)
	return s
}

func newChallenge(t *testing.T, s *Store) string {
	t.Helper()
	id := uuid.NewString()
	_, err := s.Interactions().Create(context.Background(), repository.CreateInteractionInput{
		ID:      id,
		Details: repository.NewWalletDetails(repository.WalletChallengeDetails{Address: "G" + id, Nonce: "nonce"}),
		TTL:     time.Minute,
	})
	require.NoError(t, err)
	return id
}

func uniqueEmail() string { return uuid.NewString() + "@pg.test" }

func TestConsumeWith_CallbackWritesCommitWithConsume(t *testing.T) {
	s := testStore(t, 4)
	ctx := context.Background()
	id := newChallenge(t, s)
	email := uniqueEmail()

	err := s.Interactions().ConsumeWith(ctx, id, func(txCtx context.Context, _ *repository.Interaction) error {
		u, err := s.Users().Create(txCtx, repository.CreateUserInput{PrimaryEmail: email})
		if err != nil {
			return err
		}
		_, err = s.RefreshTokens().Create(txCtx, repository.CreateRefreshTokenInput{
			UserID: u.ID, TokenHash: uuid.NewString(), ExpiresAt: time.Now().Add(time.Hour),
		})
		return err
	})
	require.NoError(t, err)

	_, err = s.Users().FindByEmail(ctx, "", email)
	require.NoError(t, err)
	_, err = s.Interactions().GetActive(ctx, id)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeWith_CallbackErrorRollsBackWrites(t *testing.T) {
	s := testStore(t, 4)
	ctx := context.Background()
	id := newChallenge(t, s)
	email := uniqueEmail()
	boom := errors.New("boom")

	err := s.Interactions().ConsumeWith(ctx, id, func(txCtx context.Context, _ *repository.Interaction) error {
		if _, err := s.Users().Create(txCtx, repository.CreateUserInput{PrimaryEmail: email}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Users().FindByEmail(ctx, "", email)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Interactions().GetActive(ctx, id)
	require.NoError(t, err)
}

func TestConsumeWith_SingleConnectionPool(t *testing.T) {
	s := testStore(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id := newChallenge(t, s)

	err := s.Interactions().ConsumeWith(ctx, id, func(txCtx context.Context, _ *repository.Interaction) error {
		u, err := s.Users().Create(txCtx, repository.CreateUserInput{})
		if err != nil {
			return err
		}
		if _, err := s.Identities().Create(txCtx, u.ID, "stellar", "G"+id); err != nil {
			return err
		}
		_, err = s.Users().GetByID(txCtx, u.ID)
		return err
	})
	require.NoError(t, err)
}

func TestConsumeWith_ConflictKeepsTxUsable(t *testing.T) {
	s := testStore(t, 2)
	ctx := context.Background()
	id := newChallenge(t, s)
	email := uniqueEmail()

	_, err := s.Users().Create(ctx, repository.CreateUserInput{PrimaryEmail: email})
	require.NoError(t, err)

	var linked string
	err = s.Interactions().ConsumeWith(ctx, id, func(txCtx context.Context, _ *repository.Interaction) error {
		_, err := s.Users().Create(txCtx, repository.CreateUserInput{PrimaryEmail: email})
		if !errors.Is(err, repository.ErrConflict) {
			return errors.New("expected conflict")
		}
		u, err := s.Users().FindByEmail(txCtx, "", email)
		if err != nil {
			return err
		}
		linked = u.ID
		_, err = s.Identities().Create(txCtx, u.ID, "stellar", "G"+id)
		return err
	})
	require.NoError(t, err)

	ident, err := s.Identities().GetByProvider(ctx, "stellar", "G"+id)
	require.NoError(t, err)
	require.Equal(t, linked, ident.UserID)
}

func TestConsumeWith_ConcurrentSingleWinner(t *testing.T) {
	s := testStore(t, 4)
	ctx := context.Background()
	id := newChallenge(t, s)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Interactions().ConsumeWith(ctx, id, func(context.Context, *repository.Interaction) error { return nil })
			if err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins.Load())
}

func TestUsers_Delete(t *testing.T) {
	s := testStore(t, 2)
	ctx := context.Background()
	u, err := s.Users().Create(ctx, repository.CreateUserInput{PrimaryEmail: uniqueEmail()})
	require.NoError(t, err)
	_, err = s.Identities().Create(ctx, u.ID, "stellar", "G"+u.ID)
	require.NoError(t, err)

	require.NoError(t, s.Users().Delete(ctx, u.ID))
	_, err = s.Identities().GetByProvider(ctx, "stellar", "G"+u.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, s.Users().Delete(ctx, u.ID), repository.ErrNotFound)
}
