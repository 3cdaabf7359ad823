// Package repository define los contratos de persistencia del broker.
//
// Las interfaces de este paquete describen qué necesita cada flujo
// (OTP, wallet, OAuth) del almacenamiento, sin atarse a un motor concreto.
// Las implementaciones viven en internal/store/{pg,memory,redis}.
//
//	┌──────────────────────────────────────────────────────┐
//	│              services (otp, wallet, oauth)           │
//	└──────────────────────────────────────────────────────┘
//	                          │
//	                          ▼
//	┌──────────────────────────────────────────────────────┐
//	│      domain/repository (interfaces + tipos)          │
//	│  Tenants, Applications, Users, Identities,           │
//	│  Interactions, RefreshTokens                         │
//	└──────────────────────────────────────────────────────┘
//	                          │
//	         ┌────────────────┼────────────────┐
//	         ▼                ▼                ▼
//	   store/pg          store/memory      store/redis
//	                                     (solo interactions)
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Un TenantID vacío representa el ámbito de plataforma (NULL en DB)
//   - Errores de dominio están en errors.go
package repository
