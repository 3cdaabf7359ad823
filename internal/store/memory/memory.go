// Package memory implementa los repositorios en memoria (dev, tests y
// despliegues de un solo nodo sin base de datos).
package memory

import (
	"sync"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
)

// DB guarda todas las tablas detrás de un RWMutex. Las consumiciones y
// mutaciones de interacciones se serializan además con ixMu para que el
// callback de ConsumeWith pueda usar los demás repos sin deadlock.
type DB struct {
	mu   sync.RWMutex
	ixMu sync.Mutex
	now  func() time.Time

	tenants      map[string]repository.Tenant
	apps         map[string]repository.Application // por id
	users        map[string]repository.User
	identities   map[string]repository.Identity
	interactions map[string]repository.Interaction
	refresh      map[string]repository.RefreshToken // por hash

	// ixSeq desempata interacciones creadas en el mismo instante.
	ixSeq   map[string]uint64
	nextSeq uint64
}

func New() *DB {
	return &DB{
		now:          time.Now,
		tenants:      map[string]repository.Tenant{},
		apps:         map[string]repository.Application{},
		users:        map[string]repository.User{},
		identities:   map[string]repository.Identity{},
		interactions: map[string]repository.Interaction{},
		refresh:      map[string]repository.RefreshToken{},
		ixSeq:        map[string]uint64{},
	}
}

// SetClock reemplaza el reloj usado para created_at/expires_at (tests).
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	db.now = now
	db.mu.Unlock()
}

func (db *DB) Tenants() repository.TenantRepository           { return &tenantRepo{db} }
func (db *DB) Applications() repository.ApplicationRepository { return &appRepo{db} }
func (db *DB) Users() repository.UserRepository               { return &userRepo{db} }
func (db *DB) Identities() repository.IdentityRepository      { return &identityRepo{db} }
func (db *DB) Interactions() repository.InteractionRepository { return &interactionRepo{db} }
func (db *DB) RefreshTokens() repository.RefreshTokenRepository {
	return &refreshRepo{db}
}
