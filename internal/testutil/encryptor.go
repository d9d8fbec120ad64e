package testutil

import "acta-go/internal/encryption"

// NewTestEncryptor returns the keyless marker encryptor.
func NewTestEncryptor() encryption.Encryptor {
	return encryption.MarkerEncryptor{}
}
