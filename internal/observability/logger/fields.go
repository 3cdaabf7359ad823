package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─── HTTP ───

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

// ─── Dominio ───

func TenantID(v string) zap.Field { return zap.String("tenant_id", v) }
func UserID(v string) zap.Field { return zap.String("user_id", v) }
func ClientID(v string) zap.Field { return zap.String("client_id", v) }
func InteractionID(v string) zap.Field { return zap.String("interaction_id", v) }

// InteractionType tag de la interacción (otp, wallet_challenge, oidc_login).
func InteractionType(v string) zap.Field { return zap.String("interaction_type", v) }

// Channel canal de notificación (email, phone).
func Channel(v string) zap.Field { return zap.String("channel", v) }

// Address dirección de wallet. Es pública, se puede loguear.
func Address(v string) zap.Field { return zap.String("address", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer capa que loguea: controller, service, repository.
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field { return zap.Error(err) }

// ─── Genéricos ───

func Count(v int) zap.Field { return zap.Int("count", v) }
func Int64(key string, v int64) zap.Field { return zap.Int64(key, v) }
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
