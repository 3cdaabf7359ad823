package oauth_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/oauth"
	"github.com/dropDatabas3/hellobroker/internal/http/services/oauth"
	"github.com/dropDatabas3/hellobroker/internal/http/services/servicetest"
	jwtx "github.com/dropDatabas3/hellobroker/internal/jwt"
	"github.com/stretchr/testify/require"
)

func authorize(t *testing.T, f *servicetest.Fixture, clientID, nonce string) string {
	t.Helper()
	res, err := f.Services.OAuth.StartInteraction(context.Background(), dto.AuthorizeRequest{
		ResponseType: "code",
		ClientID:     clientID,
		RedirectURI:  servicetest.RedirectURI,
		Scope:        "openid email",
		State:        "xyz",
		Nonce:        nonce,
	})
	require.NoError(t, err)
	require.Equal(t, servicetest.LoginURL+"/login?interactionId="+res.InteractionID, res.LoginURL)
	return res.InteractionID
}

func codeFrom(t *testing.T, loc string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(loc, servicetest.RedirectURI+"?"), loc)
	u, err := url.Parse(loc)
	require.NoError(t, err)
	require.Equal(t, "xyz", u.Query().Get("state"))
	code := u.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestAuthorizationCodeFlow(t *testing.T) {
	f := servicetest.New(t)
	u := f.User(t, "ada@acme.test")
	ctx := context.Background()

	id := authorize(t, f, f.App.ClientID, "n-123")

	details, err := f.Services.OAuth.GetInteractionDetails(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Acme Web", details.ClientName)
	require.Equal(t, "Acme", details.TenantName)
	require.Equal(t, []string{"openid", "email"}, details.Scopes)

	loc, err := f.Services.OAuth.LoginWithPassword(ctx, id, "ada@acme.test", servicetest.Password)
	require.NoError(t, err)
	code := codeFrom(t, loc)

	res, err := f.Services.OAuth.ExchangeCode(ctx, dto.TokenRequest{
		GrantType:   oauth.GrantTypeCode,
		Code:        code,
		ClientID:    f.App.ClientID,
		RedirectURI: servicetest.RedirectURI,
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer", res.TokenType)
	require.Equal(t, "openid email", res.Scope)

	claims, err := f.Issuer.Parse(res.IDToken, jwtx.TypeID)
	require.NoError(t, err)
	aud, err := claims.GetAudience()
	require.NoError(t, err)
	require.Equal(t, []string{f.App.ClientID}, []string(aud))
	require.Equal(t, "n-123", claims["nonce"])
	require.Equal(t, u.ID, claims["sub"])
	require.Equal(t, "ada@acme.test", claims["email"])
	require.Equal(t, "Ada Lovelace", claims["name"])

	// el código es de un solo uso
	_, err = f.Services.OAuth.ExchangeCode(ctx, dto.TokenRequest{GrantType: oauth.GrantTypeCode, Code: code, ClientID: f.App.ClientID})
	require.ErrorIs(t, err, oauth.ErrInvalidCode)
}

func TestIDToken_OmitsEmptyNonce(t *testing.T) {
	f := servicetest.New(t)
	u := f.User(t, "ada@acme.test")
	ctx := context.Background()

	id := authorize(t, f, f.App.ClientID, "")
	loc, err := f.Services.OAuth.LoginInteraction(ctx, id, u.ID)
	require.NoError(t, err)

	res, err := f.Services.OAuth.ExchangeCode(ctx, dto.TokenRequest{GrantType: oauth.GrantTypeCode, Code: codeFrom(t, loc), ClientID: f.App.ClientID})
	require.NoError(t, err)
	claims, err := f.Issuer.Parse(res.IDToken, jwtx.TypeID)
	require.NoError(t, err)
	_, has := claims["nonce"]
	require.False(t, has)
}

func TestStartInteraction_RedirectMustMatchExactly(t *testing.T) {
	f := servicetest.New(t)
	ctx := context.Background()

	for _, uri := range []string{
		servicetest.RedirectURI + "/",
		servicetest.RedirectURI + "?x=1",
		strings.ToUpper(servicetest.RedirectURI),
		"https://evil.test/callback",
	} {
		_, err := f.Services.OAuth.StartInteraction(ctx, dto.AuthorizeRequest{ClientID: f.App.ClientID, RedirectURI: uri})
		require.ErrorIs(t, err, oauth.ErrInvalidRedirectURI, uri)
	}

	_, err := f.Services.OAuth.StartInteraction(ctx, dto.AuthorizeRequest{ClientID: "ghost", RedirectURI: servicetest.RedirectURI})
	require.ErrorIs(t, err, oauth.ErrInvalidClient)

	_, err = f.Services.OAuth.StartInteraction(ctx, dto.AuthorizeRequest{ClientID: f.App.ClientID})
	require.ErrorIs(t, err, oauth.ErrMissingParams)

	_, err = f.Services.OAuth.StartInteraction(ctx, dto.AuthorizeRequest{ResponseType: "token", ClientID: f.App.ClientID, RedirectURI: servicetest.RedirectURI})
	require.ErrorIs(t, err, oauth.ErrUnsupportedResponse)

	_, err = f.Services.OAuth.StartInteraction(ctx, dto.AuthorizeRequest{ClientID: f.App.ClientID, RedirectURI: servicetest.RedirectURI, Scope: `openid "drop"`})
	require.ErrorIs(t, err, oauth.ErrInvalidScope)
}

func TestStartInteraction_NormalizesScope(t *testing.T) {
	f := servicetest.New(t)
	ctx := context.Background()

	res, err := f.Services.OAuth.StartInteraction(ctx, dto.AuthorizeRequest{
		ClientID:    f.App.ClientID,
		RedirectURI: servicetest.RedirectURI,
		Scope:       " openid  email openid ",
	})
	require.NoError(t, err)

	ix, err := f.Store.Interactions.GetActive(ctx, res.InteractionID)
	require.NoError(t, err)
	require.Equal(t, "openid email", ix.Details.OIDC.Scope)

	for _, scope := range []string{"openid User.Read", "openid https://api.example.com/read"} {
		res, err := f.Services.OAuth.StartInteraction(ctx, dto.AuthorizeRequest{
			ClientID:    f.App.ClientID,
			RedirectURI: servicetest.RedirectURI,
			Scope:       scope,
		})
		require.NoError(t, err, scope)
		ix, err := f.Store.Interactions.GetActive(ctx, res.InteractionID)
		require.NoError(t, err)
		require.Equal(t, scope, ix.Details.OIDC.Scope)
	}
}

func TestLoginInteraction_RejectsUserFromAnotherTenant(t *testing.T) {
	f := servicetest.New(t)
	ctx := context.Background()

	other, err := f.Store.Tenants.Create(ctx, repository.CreateTenantInput{Slug: "globex", Name: "Globex"})
	require.NoError(t, err)
	stranger, err := f.Store.Users.Create(ctx, repository.CreateUserInput{TenantID: other.ID, PrimaryEmail: "hank@globex.test"})
	require.NoError(t, err)

	id := authorize(t, f, f.App.ClientID, "")
	_, err = f.Services.OAuth.LoginInteraction(ctx, id, stranger.ID)
	require.ErrorIs(t, err, oauth.ErrUserNotFound)

	ix, err := f.Store.Interactions.GetActive(ctx, id)
	require.NoError(t, err)
	require.False(t, ix.Details.OIDC.Consented())

	platform, err := f.Store.Users.Create(ctx, repository.CreateUserInput{PrimaryEmail: "root@platform.test"})
	require.NoError(t, err)
	loc, err := f.Services.OAuth.LoginInteraction(ctx, id, platform.ID)
	require.NoError(t, err)
	require.NotEmpty(t, codeFrom(t, loc))
}

func TestLoginInteraction_OnlyOnce(t *testing.T) {
	f := servicetest.New(t)
	u := f.User(t, "ada@acme.test")
	ctx := context.Background()

	id := authorize(t, f, f.App.ClientID, "")
	_, err := f.Services.OAuth.LoginInteraction(ctx, id, u.ID)
	require.NoError(t, err)

	_, err = f.Services.OAuth.LoginInteraction(ctx, id, u.ID)
	require.ErrorIs(t, err, oauth.ErrAlreadyConsented)

	_, err = f.Services.OAuth.LoginWithPassword(ctx, "missing", "ada@acme.test", servicetest.Password)
	require.ErrorIs(t, err, oauth.ErrInvalidInteraction)

	id2 := authorize(t, f, f.App.ClientID, "")
	_, err = f.Services.OAuth.LoginWithPassword(ctx, id2, "ada@acme.test", "wrong-password")
	require.ErrorIs(t, err, oauth.ErrInvalidCredentials)
}

func TestExchangeCode_Rejections(t *testing.T) {
	f := servicetest.New(t)
	u := f.User(t, "ada@acme.test")
	ctx := context.Background()

	id := authorize(t, f, f.App.ClientID, "")
	loc, err := f.Services.OAuth.LoginInteraction(ctx, id, u.ID)
	require.NoError(t, err)
	code := codeFrom(t, loc)

	_, err = f.Services.OAuth.ExchangeCode(ctx, dto.TokenRequest{GrantType: "password", Code: code, ClientID: f.App.ClientID})
	require.ErrorIs(t, err, oauth.ErrUnsupportedGrantType)

	_, err = f.Services.OAuth.ExchangeCode(ctx, dto.TokenRequest{GrantType: oauth.GrantTypeCode, Code: code, ClientID: f.Confidential.ClientID})
	require.ErrorIs(t, err, oauth.ErrClientMismatch)

	_, err = f.Services.OAuth.ExchangeCode(ctx, dto.TokenRequest{GrantType: oauth.GrantTypeCode, Code: code, ClientID: f.App.ClientID, RedirectURI: "https://app.test/other"})
	require.ErrorIs(t, err, oauth.ErrRedirectMismatch)

	// los rechazos no consumen el código
	_, err = f.Services.OAuth.ExchangeCode(ctx, dto.TokenRequest{GrantType: oauth.GrantTypeCode, Code: code, ClientID: f.App.ClientID})
	require.NoError(t, err)
}

func TestExchangeCode_ConfidentialClient(t *testing.T) {
	f := servicetest.New(t)
	u := f.User(t, "ada@acme.test")
	ctx := context.Background()

	id := authorize(t, f, f.Confidential.ClientID, "")
	loc, err := f.Services.OAuth.LoginInteraction(ctx, id, u.ID)
	require.NoError(t, err)
	code := codeFrom(t, loc)

	req := dto.TokenRequest{GrantType: oauth.GrantTypeCode, Code: code, ClientID: f.Confidential.ClientID, ClientSecret: "wrong"}
	_, err = f.Services.OAuth.ExchangeCode(ctx, req)
	require.ErrorIs(t, err, oauth.ErrInvalidClientSecret)

	req.ClientSecret = servicetest.ClientSecret
	_, err = f.Services.OAuth.ExchangeCode(ctx, req)
	require.NoError(t, err)
}

func TestExchangeCode_Expired(t *testing.T) {
	f := servicetest.New(t)
	u := f.User(t, "ada@acme.test")
	ctx := context.Background()

	id := authorize(t, f, f.App.ClientID, "")
	loc, err := f.Services.OAuth.LoginInteraction(ctx, id, u.ID)
	require.NoError(t, err)

	f.Clock.Advance(oauth.InteractionTTL + time.Second)
	_, err = f.Services.OAuth.ExchangeCode(ctx, dto.TokenRequest{GrantType: oauth.GrantTypeCode, Code: codeFrom(t, loc), ClientID: f.App.ClientID})
	require.ErrorIs(t, err, oauth.ErrInvalidCode)
}
