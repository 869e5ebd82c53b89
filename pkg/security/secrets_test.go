package security

import (
	"bytes"
	"testing"
)

func TestNewSecretsManager(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{
			name:    "valid 32-byte key",
			key:     make([]byte, 32),
			wantErr: false,
		},
		{
			name:    "invalid short key",
			key:     make([]byte, 16),
			wantErr: true,
		},
		{
			name:    "invalid long key",
			key:     make([]byte, 64),
			wantErr: true,
		},
		{
			name:    "empty key",
			key:     []byte{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSecretsManager(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSecretsManager() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && sm == nil {
				t.Error("NewSecretsManager() returned nil without error")
			}
		})
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	sm, err := NewSecretsManager(DeriveKeyFromUnitID("hutch/0"))
	if err != nil {
		t.Fatalf("Failed to create SecretsManager: %v", err)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{
			name:      "database password",
			plaintext: []byte("s3cr3t-passw0rd"),
		},
		{
			name:      "runner registration token",
			plaintext: []byte("D0jNl3kzhGXtC1XwPLCTkdrGFuhGKRQPBM4UHHYJrQCjKGRg"),
		},
		{
			name:      "binary data",
			plaintext: []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD},
		},
		{
			name:      "large data",
			plaintext: bytes.Repeat([]byte("test"), 1000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := sm.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			if bytes.Contains(ciphertext, tt.plaintext) {
				t.Error("Encrypt() ciphertext contains plaintext")
			}

			plaintext, err := sm.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}

			if !bytes.Equal(plaintext, tt.plaintext) {
				t.Errorf("Decrypt() = %q, want %q", plaintext, tt.plaintext)
			}
		})
	}
}

func TestDecryptErrors(t *testing.T) {
	sm, err := NewSecretsManager(DeriveKeyFromUnitID("hutch/0"))
	if err != nil {
		t.Fatalf("Failed to create SecretsManager: %v", err)
	}

	tests := []struct {
		name       string
		ciphertext []byte
	}{
		{
			name:       "empty ciphertext",
			ciphertext: nil,
		},
		{
			name:       "too short for nonce",
			ciphertext: []byte{0x01, 0x02, 0x03},
		},
		{
			name:       "corrupted ciphertext",
			ciphertext: bytes.Repeat([]byte{0xAB}, 48),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sm.Decrypt(tt.ciphertext); err == nil {
				t.Error("Decrypt() expected error, got nil")
			}
		})
	}
}

func TestWrongKeyFailsDecryption(t *testing.T) {
	sm1, _ := NewSecretsManager(DeriveKeyFromUnitID("hutch/0"))
	sm2, _ := NewSecretsManager(DeriveKeyFromUnitID("hutch/1"))

	ciphertext, err := sm1.Encrypt([]byte("token"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := sm2.Decrypt(ciphertext); err == nil {
		t.Error("Decrypt() with wrong key expected error, got nil")
	}
}

func TestDeriveKeyFromUnitID(t *testing.T) {
	k1 := DeriveKeyFromUnitID("hutch/0")
	k2 := DeriveKeyFromUnitID("hutch/0")
	k3 := DeriveKeyFromUnitID("hutch/1")

	if len(k1) != 32 {
		t.Errorf("DeriveKeyFromUnitID() key length = %d, want 32", len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Error("DeriveKeyFromUnitID() not deterministic for same unit ID")
	}
	if bytes.Equal(k1, k3) {
		t.Error("DeriveKeyFromUnitID() identical keys for different unit IDs")
	}
}
