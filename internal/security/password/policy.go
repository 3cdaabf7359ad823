package password

import (
	"strings"
	"unicode"
)

// Policy reglas mínimas para passwords elegidos en /auth/register.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// Validate devuelve las reglas incumplidas (vacío = ok).
func (p Policy) Validate(s string) []string {
	var reasons []string
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	for _, rule := range []struct {
		on, ok bool
		name   string
	}{
		{p.RequireUpper, hasU, "missing_upper"},
		{p.RequireLower, hasL, "missing_lower"},
		{p.RequireDigit, hasD, "missing_digit"},
		{p.RequireSymbol, hasS, "missing_symbol"},
	} {
		if rule.on && !rule.ok {
			reasons = append(reasons, rule.name)
		}
	}
	return reasons
}

// Describe arma un detalle legible para el cliente.
func Describe(reasons []string) string {
	return "password policy: " + strings.Join(reasons, ", ")
}
