// Package metrics define los contadores de dominio del broker. Viven en un
// package aparte para que los services los usen sin importar la capa HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TokensIssued cuenta emisiones de tokens por flujo
	// (password, register, otp, wallet, authorization_code).
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Tokens emitidos por flujo de autenticación",
	}, []string{"flow"})

	// OTPDispatch result: sent|skipped|failed
	OTPDispatch = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_dispatch_total",
		Help: "Envíos de códigos OTP por canal y resultado",
	}, []string{"channel", "result"})

	InteractionsConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "interactions_consumed_total",
		Help: "Interacciones consumidas con éxito por tipo",
	}, []string{"type"})
)

// Register registra los contadores en reg (o el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{TokensIssued, OTPDispatch, InteractionsConsumed} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
