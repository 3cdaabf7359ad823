// Package middlewares contiene los decoradores HTTP del broker.
package middlewares

import "net/http"

// Middleware es un decorador de http.Handler. Es asignable a los
// middlewares de chi.
type Middleware func(http.Handler) http.Handler

// Chain envuelve h; el primero de mws es el más externo.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// Compose agrupa varios middlewares en uno, en el mismo orden que Chain.
func Compose(mws ...Middleware) Middleware {
	return func(h http.Handler) http.Handler { return Chain(h, mws...) }
}
