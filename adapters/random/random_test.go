package random_test

import (
	"strings"
	"testing"

	"github.com/applelectricals/microjpeg/adapters/random"
)

func TestReal_Token(t *testing.T) {
	r := random.Real{}

	a, err := r.Token(24)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if !strings.HasPrefix(a, random.TokenPrefix) {
		t.Errorf("token %q missing prefix", a)
	}
	if len(a) != len(random.TokenPrefix)+48 {
		t.Errorf("len = %d, want %d", len(a), len(random.TokenPrefix)+48)
	}

	b, _ := r.Token(24)
	if a == b {
		t.Error("two tokens should differ")
	}
}

func TestReal_InvalidLength(t *testing.T) {
	if _, err := (random.Real{}).Token(0); err == nil {
		t.Error("zero length must fail")
	}
}

func TestFake_Deterministic(t *testing.T) {
	f := &random.Fake{}

	first, _ := f.Token(2)
	second, _ := f.Token(2)
	if first != random.TokenPrefix+"0102" {
		t.Errorf("first = %q", first)
	}
	if second != random.TokenPrefix+"0203" {
		t.Errorf("second = %q", second)
	}
	if _, err := f.Token(-1); err == nil {
		t.Error("negative length must fail")
	}
}
