package otp_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/http/services/otp"
	"github.com/dropDatabas3/hellobroker/internal/http/services/servicetest"
	"github.com/stretchr/testify/require"
)

func TestRequestAndVerify_SingleUse(t *testing.T) {
	f := servicetest.New(t)
	u := f.User(t, "ada@acme.test")
	ctx := context.Background()

	require.NoError(t, f.Services.OTP.Request(ctx, "Ada@Acme.test", repository.ChannelEmail, f.App.ClientID))
	code := f.Outbox.LastCode(t, "ada@acme.test")

	pair, err := f.Services.OTP.Verify(ctx, "ada@acme.test", code)
	require.NoError(t, err)
	sub, _, err := f.Issuer.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, sub)

	// el canal queda verificado
	got, err := f.Store.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)

	_, err = f.Services.OTP.Verify(ctx, "ada@acme.test", code)
	require.ErrorIs(t, err, otp.ErrInvalidOrExpired)
}

func TestVerify_Expired(t *testing.T) {
	f := servicetest.New(t)
	f.User(t, "ada@acme.test")
	ctx := context.Background()

	require.NoError(t, f.Services.OTP.Request(ctx, "ada@acme.test", repository.ChannelEmail, f.App.ClientID))
	code := f.Outbox.LastCode(t, "ada@acme.test")

	f.Clock.Advance(otp.CodeTTL + time.Second)
	_, err := f.Services.OTP.Verify(ctx, "ada@acme.test", code)
	require.ErrorIs(t, err, otp.ErrInvalidOrExpired)
}

func TestVerify_WrongCodeKeepsChallenge(t *testing.T) {
	f := servicetest.New(t)
	f.User(t, "ada@acme.test")
	ctx := context.Background()

	require.NoError(t, f.Services.OTP.Request(ctx, "ada@acme.test", repository.ChannelEmail, f.App.ClientID))
	code := f.Outbox.LastCode(t, "ada@acme.test")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err := f.Services.OTP.Verify(ctx, "ada@acme.test", wrong)
	require.ErrorIs(t, err, otp.ErrInvalidOrExpired)

	_, err = f.Services.OTP.Verify(ctx, "ada@acme.test", code)
	require.NoError(t, err)
}

func TestRequest_Errors(t *testing.T) {
	f := servicetest.New(t)
	f.User(t, "ada@acme.test")
	ctx := context.Background()

	err := f.Services.OTP.Request(ctx, "ghost@acme.test", repository.ChannelEmail, f.App.ClientID)
	require.ErrorIs(t, err, otp.ErrUserNotFound)

	err = f.Services.OTP.Request(ctx, "ada@acme.test", repository.ChannelEmail, "nope")
	require.ErrorIs(t, err, otp.ErrClientNotFound)

	err = f.Services.OTP.Request(ctx, "ada@acme.test", "fax", f.App.ClientID)
	require.ErrorIs(t, err, otp.ErrInvalidChannel)

	require.Zero(t, f.Outbox.Len())
}

func TestRequest_DispatchFailure(t *testing.T) {
	f := servicetest.New(t)
	f.User(t, "ada@acme.test")
	f.Outbox.Fail = errors.New("gateway down")

	err := f.Services.OTP.Request(context.Background(), "ada@acme.test", repository.ChannelEmail, f.App.ClientID)
	require.ErrorIs(t, err, otp.ErrDispatchFailed)
}

func TestRequest_NoCredentialsIsSilent(t *testing.T) {
	f := servicetest.New(t)
	ctx := context.Background()
	_, err := f.Store.Users.Create(ctx, repository.CreateUserInput{TenantID: f.Tenant.ID, PhoneNumber: "+5491100000000"})
	require.NoError(t, err)

	// el tenant solo tiene email configurado
	require.NoError(t, f.Services.OTP.Request(ctx, "+5491100000000", repository.ChannelPhone, f.App.ClientID))
	require.Zero(t, f.Outbox.Len())
}

func TestRequest_AcceptsInteractionAsClient(t *testing.T) {
	f := servicetest.New(t)
	f.User(t, "ada@acme.test")
	ctx := context.Background()

	ix, err := f.Services.Interactions.Create(ctx, repository.NewOIDCDetails(repository.OIDCLoginDetails{
		ClientID:    f.App.ClientID,
		TenantID:    f.Tenant.ID,
		RedirectURI: servicetest.RedirectURI,
	}), time.Minute)
	require.NoError(t, err)

	require.NoError(t, f.Services.OTP.Request(ctx, "ada@acme.test", repository.ChannelEmail, ix.ID))
	require.Equal(t, 1, f.Outbox.Len())
}
