package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*InteractionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewInteractionStore(client, "test:"), mr
}

func otpInput(id, identifier, codeHash string) repository.CreateInteractionInput {
	return repository.CreateInteractionInput{
		ID: id,
		Details: repository.NewOTPDetails(repository.OTPDetails{
			Identifier: identifier,
			Method:     repository.ChannelEmail,
			CodeHash:   codeHash,
		}),
		TTL: 5 * time.Minute,
	}
}

func TestRedisInteractions_CreateGetExpire(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, otpInput("ix1", "a@x.com", "h1"))
	require.NoError(t, err)
	require.Equal(t, repository.InteractionOTP, created.Details.Type)

	got, err := s.GetActive(ctx, "ix1")
	require.NoError(t, err)
	require.Equal(t, "h1", got.Details.OTP.CodeHash)

	_, err = s.Create(ctx, otpInput("ix1", "a@x.com", "h1"))
	require.ErrorIs(t, err, repository.ErrConflict)

	mr.FastForward(5 * time.Minute)
	_, err = s.GetActive(ctx, "ix1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRedisInteractions_ListNewestFirst(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	base := time.Now()
	s.SetClock(func() time.Time { return base })
	_, err := s.Create(ctx, otpInput("old", "a@x.com", "h1"))
	require.NoError(t, err)
	s.SetClock(func() time.Time { return base.Add(time.Second) })
	_, err = s.Create(ctx, otpInput("new", "a@x.com", "h2"))
	require.NoError(t, err)

	list, err := s.ListActiveByLookup(ctx, repository.InteractionOTP, "a@x.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "new", list[0].ID)
}

func TestRedisInteractions_ConsumeOnce(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, otpInput("ix1", "a@x.com", "h1"))
	require.NoError(t, err)

	boom := errors.New("boom")
	require.ErrorIs(t, s.ConsumeWith(ctx, "ix1", func(context.Context, *repository.Interaction) error { return boom }), boom)
	_, err = s.GetActive(ctx, "ix1")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ConsumeWith(ctx, "ix1", nil) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())

	list, err := s.ListActiveByLookup(ctx, repository.InteractionOTP, "a@x.com")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRedisInteractions_MutateReindexes(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, repository.CreateInteractionInput{
		ID:      "ix1",
		Details: repository.NewOIDCDetails(repository.OIDCLoginDetails{ClientID: "c", RedirectURI: "https://a/cb"}),
		TTL:     15 * time.Minute,
	})
	require.NoError(t, err)

	_, err = s.Mutate(ctx, "ix1", func(d *repository.InteractionDetails) error {
		d.OIDC.CodeHash = "code-hash"
		d.OIDC.UserID = "u1"
		return nil
	})
	require.NoError(t, err)

	list, err := s.ListActiveByLookup(ctx, repository.InteractionOIDCLogin, "code-hash")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "u1", list[0].Details.OIDC.UserID)
}

func TestRedisInteractions_DeleteExpired(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, otpInput("ix1", "a@x.com", "h1"))
	require.NoError(t, err)

	n, err := s.DeleteExpired(ctx, time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
