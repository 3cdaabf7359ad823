package tokens

import (
	"regexp"
	"testing"
)

func TestGenerateNumericCode_Shape(t *testing.T) {
	re := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 200; i++ {
		c, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("GenerateNumericCode: %v", err)
		}
		if !re.MatchString(c) {
			t.Fatalf("unexpected code %q", c)
		}
	}
	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatal("expected error for 0 digits")
	}
}

func TestOpaqueTokenAndHash(t *testing.T) {
	a, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateOpaqueToken(32)
	if a == b {
		t.Fatal("tokens should differ")
	}
	if len(a) != 43 {
		t.Fatalf("32 bytes base64url should be 43 chars, got %d", len(a))
	}
	if !EqualHash(SHA256Base64URL(a), SHA256Base64URL(a)) {
		t.Fatal("hash should be deterministic")
	}
	if EqualHash(SHA256Base64URL(a), SHA256Base64URL(b)) {
		t.Fatal("different inputs should not collide")
	}
}
