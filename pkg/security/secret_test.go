package security_test

import (
	"strings"
	"testing"

	"github.com/angelmondragon/localdrop/pkg/config"
	"github.com/angelmondragon/localdrop/pkg/security"
)

var lightParams = config.PasswordConfig{
	ArgonMemoryKB:    1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := security.HashSecret("482913", lightParams)
	if err != nil {
		t.Fatalf("HashSecret returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := security.VerifySecret("482913", hash)
	if err != nil || !ok {
		t.Fatalf("VerifySecret failed for the correct code: ok=%v err=%v", ok, err)
	}

	ok, err = security.VerifySecret("482914", hash)
	if err != nil {
		t.Fatalf("VerifySecret returned error for a wrong code: %v", err)
	}
	if ok {
		t.Fatal("VerifySecret accepted a wrong code")
	}
}

func TestVerifySecretRejectsMalformedHash(t *testing.T) {
	if _, err := security.VerifySecret("x", "not-a-hash"); err != security.ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
	if _, err := security.HashSecret("", lightParams); err == nil {
		t.Fatal("expected empty secret to be rejected")
	}
}

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := security.GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("GenerateNumericCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non digit in %q", code)
			}
		}
	}
	if _, err := security.GenerateNumericCode(0); err == nil {
		t.Fatal("expected zero length to fail")
	}
}
