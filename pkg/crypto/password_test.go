package crypto

import (
	"bytes"
	"testing"
)

func TestHashPasswordNeverStoresPlaintext(t *testing.T) {
	hash, err := HashPassword("pw1secret", MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if bytes.Equal(hash, []byte("pw1secret")) {
		t.Fatalf("hash equals plaintext")
	}
	if err := ComparePassword(hash, "pw1secret"); err != nil {
		t.Fatalf("compare against own plaintext: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	first, err := HashPassword("pw1secret", MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := HashPassword("pw1secret", MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatalf("expected distinct hashes for identical input")
	}
}

func TestHashPasswordEnforcesMinimumCost(t *testing.T) {
	hash, err := HashPassword("pw1secret", 1)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hash, "pw1secret"); err != nil {
		t.Fatalf("compare: %v", err)
	}
}
