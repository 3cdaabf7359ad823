package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newDB(t *testing.T) (*DB, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	db := New()
	db.SetClock(c.now)
	return db, c
}

func walletIx(id, addr string) repository.CreateInteractionInput {
	return repository.CreateInteractionInput{
		ID:      id,
		Details: repository.NewWalletDetails(repository.WalletChallengeDetails{Address: addr, Nonce: "nonce-" + id}),
		TTL:     2 * time.Minute,
	}
}

func TestInteractions_ExpiryFiltersReads(t *testing.T) {
	db, c := newDB(t)
	repo := db.Interactions()
	ctx := context.Background()

	_, err := repo.Create(ctx, walletIx("ix1", "GA"))
	require.NoError(t, err)

	_, err = repo.GetActive(ctx, "ix1")
	require.NoError(t, err)

	c.advance(2 * time.Minute)
	_, err = repo.GetActive(ctx, "ix1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	list, err := repo.ListActiveByLookup(ctx, repository.InteractionWalletChallenge, "GA")
	require.NoError(t, err)
	require.Empty(t, list)

	err = repo.ConsumeWith(ctx, "ix1", nil)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInteractions_ListNewestFirst(t *testing.T) {
	db, c := newDB(t)
	repo := db.Interactions()
	ctx := context.Background()

	_, err := repo.Create(ctx, walletIx("old", "GA"))
	require.NoError(t, err)
	c.advance(time.Second)
	_, err = repo.Create(ctx, walletIx("new", "GA"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, walletIx("other", "GB"))
	require.NoError(t, err)

	list, err := repo.ListActiveByLookup(ctx, repository.InteractionWalletChallenge, "GA")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "new", list[0].ID)
	require.Equal(t, "old", list[1].ID)
}

func TestInteractions_ConsumeWithRollsBackOnError(t *testing.T) {
	db, _ := newDB(t)
	repo := db.Interactions()
	ctx := context.Background()
	_, err := repo.Create(ctx, walletIx("ix1", "GA"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repo.ConsumeWith(ctx, "ix1", func(context.Context, *repository.Interaction) error { return boom })
	require.ErrorIs(t, err, boom)

	_, err = repo.GetActive(ctx, "ix1")
	require.NoError(t, err, "failed consumption must leave the interaction intact")

	require.NoError(t, repo.ConsumeWith(ctx, "ix1", nil))
	require.ErrorIs(t, repo.ConsumeWith(ctx, "ix1", nil), repository.ErrNotFound)
}

func TestInteractions_ConcurrentConsumeRunsOnce(t *testing.T) {
	db, _ := newDB(t)
	repo := db.Interactions()
	ctx := context.Background()
	_, err := repo.Create(ctx, walletIx("ix1", "GA"))
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.ConsumeWith(ctx, "ix1", func(context.Context, *repository.Interaction) error { return nil }); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

func TestInteractions_MutateKeepsType(t *testing.T) {
	db, _ := newDB(t)
	repo := db.Interactions()
	ctx := context.Background()
	_, err := repo.Create(ctx, repository.CreateInteractionInput{
		ID:      "ix1",
		Details: repository.NewOIDCDetails(repository.OIDCLoginDetails{ClientID: "c", RedirectURI: "https://a/cb"}),
		TTL:     15 * time.Minute,
	})
	require.NoError(t, err)

	_, err = repo.Mutate(ctx, "ix1", func(d *repository.InteractionDetails) error {
		*d = repository.NewWalletDetails(repository.WalletChallengeDetails{Address: "G", Nonce: "n"})
		return nil
	})
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	ix, err := repo.Mutate(ctx, "ix1", func(d *repository.InteractionDetails) error {
		d.OIDC.CodeHash = "h"
		d.OIDC.UserID = "u"
		return nil
	})
	require.NoError(t, err)
	require.True(t, ix.Details.OIDC.Consented())

	list, err := repo.ListActiveByLookup(ctx, repository.InteractionOIDCLogin, "h")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestInteractions_DeleteExpired(t *testing.T) {
	db, c := newDB(t)
	repo := db.Interactions()
	ctx := context.Background()
	_, err := repo.Create(ctx, walletIx("a", "GA"))
	require.NoError(t, err)
	c.advance(5 * time.Minute)
	_, err = repo.Create(ctx, walletIx("b", "GB"))
	require.NoError(t, err)

	n, err := repo.DeleteExpired(ctx, c.now())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestUsers_ScopedUniquenessAndPreference(t *testing.T) {
	db, c := newDB(t)
	users := db.Users()
	ctx := context.Background()

	platform, err := users.Create(ctx, repository.CreateUserInput{PrimaryEmail: "A@x.com"})
	require.NoError(t, err)
	require.Equal(t, "a@x.com", platform.PrimaryEmail)

	c.advance(time.Second)
	scoped, err := users.Create(ctx, repository.CreateUserInput{TenantID: "t1", PrimaryEmail: "a@x.com"})
	require.NoError(t, err)

	_, err = users.Create(ctx, repository.CreateUserInput{TenantID: "t1", PrimaryEmail: "a@x.com"})
	require.ErrorIs(t, err, repository.ErrConflict)

	got, err := users.FindByEmail(ctx, "t1", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, scoped.ID, got.ID)

	got, err = users.FindByEmail(ctx, "t2", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, platform.ID, got.ID)

	got, err = users.FindByEmail(ctx, "", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, platform.ID, got.ID)
}

func TestIdentities_UniquePerProvider(t *testing.T) {
	db, _ := newDB(t)
	ctx := context.Background()
	u, err := db.Users().Create(ctx, repository.CreateUserInput{PrimaryEmail: "a@x.com"})
	require.NoError(t, err)

	_, err = db.Identities().Create(ctx, u.ID, "stellar", "GA")
	require.NoError(t, err)
	_, err = db.Identities().Create(ctx, u.ID, "stellar", "GA")
	require.ErrorIs(t, err, repository.ErrConflict)

	n, err := db.Identities().DeleteByUser(ctx, u.ID, "stellar")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestUsers_DeleteCascades(t *testing.T) {
	db, c := newDB(t)
	ctx := context.Background()
	u, err := db.Users().Create(ctx, repository.CreateUserInput{PrimaryEmail: "gone@x.com"})
	require.NoError(t, err)
	_, err = db.Identities().Create(ctx, u.ID, "stellar", "GGONE")
	require.NoError(t, err)
	_, err = db.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{UserID: u.ID, TokenHash: "h1", ExpiresAt: c.now().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, db.Users().Delete(ctx, u.ID))

	_, err = db.Users().GetByID(ctx, u.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = db.Identities().GetByProvider(ctx, "stellar", "GGONE")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = db.RefreshTokens().GetByHash(ctx, "h1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.ErrorIs(t, db.Users().Delete(ctx, u.ID), repository.ErrNotFound)
}
