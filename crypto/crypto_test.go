package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	plaintext := "oauth:verysecrettoken"
	stored, err := EncryptString(enc, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if stored == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}
	got, err := DecryptString(enc, stored)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != plaintext {
		t.Fatalf("round trip = %q, want %q", got, plaintext)
	}
}

func TestEmptyStringPassthrough(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	s, err := EncryptString(enc, "")
	if err != nil || s != "" {
		t.Fatalf("empty encrypt = %q, %v", s, err)
	}
	s, err = DecryptString(enc, "")
	if err != nil || s != "" {
		t.Fatalf("empty decrypt = %q, %v", s, err)
	}
}

func TestTamperDetection(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	stored, err := EncryptString(enc, "token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(stored)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)
	if _, err := DecryptString(enc, tampered); err == nil {
		t.Fatal("tampered ciphertext decrypted without error")
	}
}

func TestKeyValidation(t *testing.T) {
	if _, err := NewAESEncryptor(""); err == nil {
		t.Fatal("empty key accepted")
	}
	if _, err := NewAESEncryptor("not base64!!!"); err == nil {
		t.Fatal("invalid base64 key accepted")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := NewAESEncryptor(short); err == nil || !strings.Contains(err.Error(), "32 bytes") {
		t.Fatalf("short key accepted or wrong error: %v", err)
	}
}
