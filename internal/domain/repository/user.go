package repository

import (
	"context"
	"strings"
	"time"
)

// Channel identifica el canal de un identificador (email o teléfono).
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

// Valid reporta si el canal es conocido.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelPhone
}

// NormalizeIdentifier deja el identificador en forma canónica para búsquedas.
// Emails se comparan en minúsculas; teléfonos sin espacios.
func NormalizeIdentifier(ch Channel, v string) string {
	v = strings.TrimSpace(v)
	if ch == ChannelEmail {
		return strings.ToLower(v)
	}
	return strings.ReplaceAll(v, " ", "")
}

// User representa un usuario final.
type User struct {
	ID            string
	TenantID      string // vacío = identidad de plataforma
	PrimaryEmail  string
	PhoneNumber   string
	FirstName     string
	LastName      string
	PasswordHash  *string
	EmailVerified bool
	PhoneVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// FullName devuelve "first last" sin espacios sobrantes.
func (u *User) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// Identity vincula un usuario con una credencial externa (ej: wallet stellar).
type Identity struct {
	ID         string
	UserID     string
	Provider   string
	ProviderID string
	CreatedAt  time.Time
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	TenantID      string
	PrimaryEmail  string
	PhoneNumber   string
	FirstName     string
	LastName      string
	PasswordHash  string
	EmailVerified bool
	PhoneVerified bool
}

// UpdateUserInput contiene los campos actualizables (nil = sin cambios).
type UpdateUserInput struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
}

// UserRepository define operaciones sobre usuarios activos (deleted_at IS NULL).
type UserRepository interface {
	// GetByID retorna ErrNotFound si no existe o está borrado.
	GetByID(ctx context.Context, id string) (*User, error)

	// FindByEmail busca por email. Con tenantID se prefiere el usuario del
	// tenant y luego el de plataforma; sin tenantID se prefiere plataforma.
	FindByEmail(ctx context.Context, tenantID, email string) (*User, error)

	// FindByPhone igual que FindByEmail pero por teléfono.
	FindByPhone(ctx context.Context, tenantID, phone string) (*User, error)

	// Create retorna ErrConflict si email o teléfono ya existen en el ámbito.
	// Email y teléfono pueden faltar ambos (usuarios creados por wallet).
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// Update retorna ErrConflict si el teléfono nuevo ya existe en el ámbito.
	Update(ctx context.Context, id string, input UpdateUserInput) (*User, error)

	// MarkVerified marca el canal como verificado.
	MarkVerified(ctx context.Context, id string, ch Channel) error

	// Delete borra físicamente al usuario y sus identidades. Solo se usa
	// para deshacer un alta que no llegó a completarse.
	Delete(ctx context.Context, id string) error
}

// IdentityRepository define operaciones sobre identidades externas.
type IdentityRepository interface {
	// GetByProvider retorna ErrNotFound si no existe.
	GetByProvider(ctx context.Context, provider, providerID string) (*Identity, error)

	// ListByUser retorna las identidades del usuario (puede ser vacío).
	ListByUser(ctx context.Context, userID string) ([]Identity, error)

	// Create retorna ErrConflict si (provider, providerID) ya está vinculado.
	Create(ctx context.Context, userID, provider, providerID string) (*Identity, error)

	// DeleteByUser borra las identidades del provider para el usuario.
	// Retorna cuántas se borraron.
	DeleteByUser(ctx context.Context, userID, provider string) (int64, error)
}
