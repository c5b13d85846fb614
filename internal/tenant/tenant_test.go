package tenant

import (
	"strings"
	"testing"
)

func TestDeriveKeyShape(t *testing.T) {
	key := DeriveKey("Tenant-A")
	if len(key) != KeyLength {
		t.Fatalf("key length = %d, want %d", len(key), KeyLength)
	}
	if key != strings.ToLower(key) {
		t.Fatalf("key %q is not lower-cased", key)
	}
	for _, r := range key {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("key %q contains non-hex rune %q", key, r)
		}
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	if DeriveKey("tenant-a") != DeriveKey("tenant-a") {
		t.Fatal("same tenant produced different keys")
	}
	if DeriveKey("tenant-a") == DeriveKey("tenant-b") {
		t.Fatal("different tenants produced the same key")
	}
}

func TestFingerprintChangesWithEveryInput(t *testing.T) {
	base := Fingerprint("user", "tenant", []byte("content"))

	if got := Fingerprint("user2", "tenant", []byte("content")); got == base {
		t.Fatal("fingerprint ignored user change")
	}
	if got := Fingerprint("user", "tenant2", []byte("content")); got == base {
		t.Fatal("fingerprint ignored tenant change")
	}
	if got := Fingerprint("user", "tenant", []byte("content2")); got == base {
		t.Fatal("fingerprint ignored content change")
	}
	if got := Fingerprint("user", "tenant", []byte("content")); got != base {
		t.Fatal("fingerprint is not deterministic")
	}
}

// The length prefix has to keep adjacent fields from bleeding into each
// other: ("ab", "c") and ("a", "bc") concatenate identically.
func TestFingerprintFieldBoundaries(t *testing.T) {
	a := Fingerprint("ab", "c", []byte("x"))
	b := Fingerprint("a", "bc", []byte("x"))
	if a == b {
		t.Fatal("boundary shift between user and tenant collided")
	}

	c := Fingerprint("u", "tc", []byte("x"))
	d := Fingerprint("u", "t", []byte("cx"))
	if c == d {
		t.Fatal("boundary shift between tenant and content collided")
	}
}
