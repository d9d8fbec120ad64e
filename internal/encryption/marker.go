package encryption

import (
	"bytes"
	"fmt"
	"io"
)

var marker = []byte("ACTAENC\x00")

// MarkerEncryptor prefixes a fixed header instead of encrypting. Output
// differs from the plaintext and round-trips without keys, which keeps
// archive tests fast. Selected with encryption type "test".
type MarkerEncryptor struct{}

var _ Encryptor = MarkerEncryptor{}

func (MarkerEncryptor) Setup(string) error { return nil }

func (MarkerEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(marker); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (MarkerEncryptor) Unlock(string) (Decrypter, error) { return markerDecrypter{}, nil }

func (MarkerEncryptor) IsConfigured() bool { return true }

type markerDecrypter struct{}

func (markerDecrypter) Decrypt(r io.Reader, w io.Writer) error {
	head := make([]byte, len(marker))
	if _, err := io.ReadFull(r, head); err != nil {
		return fmt.Errorf("reading marker: %w", err)
	}
	if !bytes.Equal(head, marker) {
		return fmt.Errorf("data was not written by the marker encryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
