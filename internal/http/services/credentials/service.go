// Package credentials busca y crea usuarios por email, teléfono o wallet y
// verifica passwords.
package credentials

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/dropDatabas3/hellobroker/internal/security/password"
	"github.com/dropDatabas3/hellobroker/internal/security/wallet"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIdentifierInUse    = errors.New("identifier already in use")
	ErrWalletNotLinked    = errors.New("no wallet linked")
	ErrInvalidChannel     = errors.New("invalid channel")
)

// dummyHash se verifica cuando el usuario no existe o no tiene password,
// para que el tiempo de respuesta no revele cuál de los dos casos fue.
var dummyHash, _ = password.Hash(password.Default, "hellobroker-timing-equalizer")

// RegisterInput datos para crear un usuario con identificadores propios.
type RegisterInput struct {
	TenantID  string
	Email     string
	Phone     string
	FirstName string
	LastName  string
	Password  string // opcional
	// WalletAddress opcional: se vincula en la misma alta. Si el vínculo
	// falla el usuario no queda creado.
	WalletAddress string
}

// Service define las operaciones del CredentialStore.
type Service interface {
	GetUser(ctx context.Context, userID string) (*repository.User, error)
	FindByIdentifier(ctx context.Context, tenantID string, ch repository.Channel, identifier string) (*repository.User, error)
	// FindOrCreateByIdentifier marca el canal como verificado. created
	// indica si el usuario es nuevo.
	FindOrCreateByIdentifier(ctx context.Context, tenantID string, ch repository.Channel, identifier string) (u *repository.User, created bool, err error)
	FindOrCreateByWallet(ctx context.Context, address string) (u *repository.User, created bool, err error)
	VerifyPassword(ctx context.Context, tenantID, email, plain string) (*repository.User, error)
	Register(ctx context.Context, in RegisterInput) (*repository.User, error)
	UpdateProfile(ctx context.Context, userID string, in repository.UpdateUserInput) (*repository.User, error)
	WalletAddress(ctx context.Context, userID string) (string, error)
	// WalletInUse reporta si address ya está vinculada a algún usuario.
	WalletInUse(ctx context.Context, address string) (bool, error)
	// LinkWallet reemplaza la wallet vinculada del usuario por address.
	LinkWallet(ctx context.Context, userID, address string) error
	UnlinkWallet(ctx context.Context, userID string) error
}

// Deps contiene las dependencias del service.
type Deps struct {
	Users      repository.UserRepository
	Identities repository.IdentityRepository
	Hash       password.Params
}

type service struct {
	deps Deps
}

// NewService crea el CredentialStore.
func NewService(d Deps) Service {
	if d.Hash == (password.Params{}) {
		d.Hash = password.Default
	}
	return &service{deps: d}
}

func (s *service) GetUser(ctx context.Context, userID string) (*repository.User, error) {
	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *service) FindByIdentifier(ctx context.Context, tenantID string, ch repository.Channel, identifier string) (*repository.User, error) {
	var (
		u   *repository.User
		err error
	)
	switch ch {
	case repository.ChannelEmail:
		u, err = s.deps.Users.FindByEmail(ctx, tenantID, identifier)
	case repository.ChannelPhone:
		u, err = s.deps.Users.FindByPhone(ctx, tenantID, identifier)
	default:
		return nil, ErrInvalidChannel
	}
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *service) FindOrCreateByIdentifier(ctx context.Context, tenantID string, ch repository.Channel, identifier string) (*repository.User, bool, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Credentials.FindOrCreateByIdentifier"))

	u, err := s.FindByIdentifier(ctx, tenantID, ch, identifier)
	switch {
	case err == nil:
		if !verified(u, ch) {
			if err := s.deps.Users.MarkVerified(ctx, u.ID, ch); err != nil {
				return nil, false, err
			}
			setVerified(u, ch)
		}
		return u, false, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, false, err
	}

	in := repository.CreateUserInput{TenantID: tenantID}
	if ch == repository.ChannelEmail {
		in.PrimaryEmail, in.EmailVerified = identifier, true
	} else {
		in.PhoneNumber, in.PhoneVerified = identifier, true
	}
	u, err = s.deps.Users.Create(ctx, in)
	if repository.IsConflict(err) {
		// otro request lo creó entre el find y el create
		u, err = s.FindByIdentifier(ctx, tenantID, ch, identifier)
		return u, false, err
	}
	if err != nil {
		return nil, false, err
	}
	log.Info("user created on first contact", logger.UserID(u.ID), logger.Channel(string(ch)))
	return u, true, nil
}

func (s *service) FindOrCreateByWallet(ctx context.Context, address string) (*repository.User, bool, error) {
	id, err := s.deps.Identities.GetByProvider(ctx, wallet.Provider, address)
	if err == nil {
		u, err := s.GetUser(ctx, id.UserID)
		return u, false, err
	}
	if !repository.IsNotFound(err) {
		return nil, false, err
	}

	u, err := s.deps.Users.Create(ctx, repository.CreateUserInput{})
	if err != nil {
		return nil, false, err
	}
	if _, err := s.deps.Identities.Create(ctx, u.ID, wallet.Provider, address); err != nil {
		s.discard(ctx, u.ID)
		if repository.IsConflict(err) {
			// carrera: la identidad ya la vinculó otro request
			id, gerr := s.deps.Identities.GetByProvider(ctx, wallet.Provider, address)
			if gerr != nil {
				return nil, false, gerr
			}
			u, gerr := s.GetUser(ctx, id.UserID)
			return u, false, gerr
		}
		return nil, false, err
	}
	logger.From(ctx).Info("user created from wallet",
		logger.Layer("service"), logger.UserID(u.ID), logger.Address(address))
	return u, true, nil
}

func (s *service) VerifyPassword(ctx context.Context, tenantID, email, plain string) (*repository.User, error) {
	u, err := s.FindByIdentifier(ctx, tenantID, repository.ChannelEmail, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			password.Verify(plain, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.PasswordHash == nil || *u.PasswordHash == "" {
		password.Verify(plain, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !password.Verify(plain, *u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*repository.User, error) {
	create := repository.CreateUserInput{
		TenantID:     strings.TrimSpace(in.TenantID),
		PrimaryEmail: in.Email,
		PhoneNumber:  in.Phone,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	}
	if in.Password != "" {
		h, err := password.Hash(s.deps.Hash, in.Password)
		if err != nil {
			return nil, err
		}
		create.PasswordHash = h
	}
	u, err := s.deps.Users.Create(ctx, create)
	if err != nil {
		if repository.IsConflict(err) {
			return nil, ErrIdentifierInUse
		}
		return nil, err
	}
	if addr := strings.TrimSpace(in.WalletAddress); addr != "" {
		if _, err := s.deps.Identities.Create(ctx, u.ID, wallet.Provider, addr); err != nil {
			s.discard(ctx, u.ID)
			if repository.IsConflict(err) {
				return nil, ErrIdentifierInUse
			}
			return nil, err
		}
	}
	return u, nil
}

// discard deshace el alta de un usuario recién creado cuyo vínculo falló.
func (s *service) discard(ctx context.Context, userID string) {
	if err := s.deps.Users.Delete(ctx, userID); err != nil {
		logger.From(ctx).Warn("could not discard half-created user",
			logger.Layer("service"), logger.UserID(userID), logger.Err(err))
	}
}

func (s *service) UpdateProfile(ctx context.Context, userID string, in repository.UpdateUserInput) (*repository.User, error) {
	u, err := s.deps.Users.Update(ctx, userID, in)
	if err != nil {
		switch {
		case repository.IsNotFound(err):
			return nil, ErrUserNotFound
		case repository.IsConflict(err):
			return nil, ErrIdentifierInUse
		}
		return nil, err
	}
	return u, nil
}

func (s *service) WalletAddress(ctx context.Context, userID string) (string, error) {
	ids, err := s.deps.Identities.ListByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		if id.Provider == wallet.Provider {
			return id.ProviderID, nil
		}
	}
	return "", nil
}

func (s *service) WalletInUse(ctx context.Context, address string) (bool, error) {
	_, err := s.deps.Identities.GetByProvider(ctx, wallet.Provider, address)
	switch {
	case err == nil:
		return true, nil
	case repository.IsNotFound(err):
		return false, nil
	}
	return false, err
}

func (s *service) LinkWallet(ctx context.Context, userID, address string) error {
	if cur, err := s.deps.Identities.GetByProvider(ctx, wallet.Provider, address); err == nil {
		if cur.UserID == userID {
			return nil
		}
		return ErrIdentifierInUse
	} else if !repository.IsNotFound(err) {
		return err
	}
	if _, err := s.deps.Identities.DeleteByUser(ctx, userID, wallet.Provider); err != nil {
		return err
	}
	if _, err := s.deps.Identities.Create(ctx, userID, wallet.Provider, address); err != nil {
		if repository.IsConflict(err) {
			return ErrIdentifierInUse
		}
		return err
	}
	return nil
}

func (s *service) UnlinkWallet(ctx context.Context, userID string) error {
	n, err := s.deps.Identities.DeleteByUser(ctx, userID, wallet.Provider)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrWalletNotLinked
	}
	return nil
}

func verified(u *repository.User, ch repository.Channel) bool {
	if ch == repository.ChannelEmail {
		return u.EmailVerified
	}
	return u.PhoneVerified
}

func setVerified(u *repository.User, ch repository.Channel) {
	if ch == repository.ChannelEmail {
		u.EmailVerified = true
	} else {
		u.PhoneVerified = true
	}
}
