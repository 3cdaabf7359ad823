package repository

import "errors"

// Sentinels que devuelven todos los drivers (memory, pg, redis). Los
// services los traducen a sus propios errores; nunca llegan a HTTP.
var (
	// ErrNotFound: no existe, expiró o ya fue consumido.
	ErrNotFound = errors.New("not found")

	// ErrConflict: slug, client_id o identificador duplicado.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput: el registro no cumple sus invariantes (ej. detalles de
	// interacción con más de un payload).
	ErrInvalidInput = errors.New("invalid input")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
