// Package validation valida parámetros OAuth que no son DTOs.
package validation

import (
	"fmt"
	"strings"
)

// MaxScopeLen acota cada scope-token.
const MaxScopeLen = 256

// ValidScopeName reporta si name es un scope-token: 1*NQCHAR (RFC 6749
// §3.3), es decir ASCII visible salvo '"' y '\'. Distingue mayúsculas.
func ValidScopeName(name string) bool {
	if name == "" || len(name) > MaxScopeLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}

// ParseScope separa el parámetro scope por espacios y quita duplicados
// conservando el orden. Vacío es válido y devuelve nil.
func ParseScope(scope string) ([]string, error) {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !ValidScopeName(f) {
			return nil, fmt.Errorf("invalid scope %q", f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}
