// Package util tiene helpers chicos sin dependencias de dominio.
package util

import "strings"

// MaskEmail deja la primera letra del usuario y del dominio:
// ada@example.com → a…@e….com
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	user, dom, ok := strings.Cut(s, "@")
	if !ok || user == "" {
		return maskTail(s, 1)
	}
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	parts := strings.Split(dom, ".")
	if len(parts[0]) > 1 {
		parts[0] = parts[0][:1] + "…"
	}
	return user + "@" + strings.Join(parts, ".")
}

// MaskPhone deja visibles los últimos 4 dígitos: +5491155550000 → +…0000
func MaskPhone(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "***"
	}
	prefix := ""
	if strings.HasPrefix(s, "+") {
		prefix = "+"
	}
	return prefix + "…" + s[len(s)-4:]
}

// MaskIdentifier enmascara un email o un teléfono para logs.
func MaskIdentifier(s string) string {
	if strings.Contains(s, "@") {
		return MaskEmail(s)
	}
	return MaskPhone(s)
}

func maskTail(s string, keep int) string {
	if s == "" {
		return ""
	}
	if len(s) <= 3 {
		return "***"
	}
	return s[:keep] + "…" + s[len(s)-keep:]
}
