// Package archive keeps the evidence of submitted handovers: the two
// signature images, the generated acta PDF and a snapshot of the local
// journal, all encrypted into the vault.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"acta-go/internal/database"
	"acta-go/internal/encryption"
	"acta-go/internal/inspection"
	"acta-go/internal/model"
	"acta-go/internal/vault"
)

// Content kinds recorded in the journal.
const (
	KindSignature = "signature"
	KindActa      = "acta"
)

// JournalSnapshot is the vault snapshot name of the journal backup.
const JournalSnapshot = "journal"

// Journal is the part of the SQLite journal the archive writes to.
type Journal interface {
	EnsureContent(ctx context.Context, id, kind string, size int64) error
	FindContent(ctx context.Context, id string) (*database.Content, error)
	SaveHandover(ctx context.Context, h model.Handover) error
	SetActaChecksum(ctx context.Context, handoverID, checksum string) error
	FindHandover(ctx context.Context, id string) (*model.Handover, error)
	ListHandovers(ctx context.Context, limit int) ([]model.Handover, error)
	PendingActas(ctx context.Context) ([]model.Handover, error)
	BackupTo(destPath string) error
}

// Fetcher downloads acta PDFs. *api.Client satisfies it.
type Fetcher interface {
	GetText(ctx context.Context, url string, retries int) (string, error)
}

// Service archives handover evidence.
type Service struct {
	journal  Journal
	vault    vault.Vault
	enc      encryption.Encryptor
	fetcher  Fetcher
	deviceID string
	retries  int
	logger   *slog.Logger
}

// NewService wires the archive. fetcher may be nil when actas are never
// downloaded (Run then fails).
func NewService(j Journal, v vault.Vault, enc encryption.Encryptor, fetcher Fetcher, deviceID string, retries int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		journal:  j,
		vault:    v,
		enc:      enc,
		fetcher:  fetcher,
		deviceID: deviceID,
		retries:  retries,
		logger:   logger,
	}
}

var _ inspection.HandoverRecorder = (*Service)(nil)

// RecordHandover stores both signatures and journals the handover. The
// signatures arrive as data URLs; anything else is stored verbatim.
func (s *Service) RecordHandover(ctx context.Context, h model.Handover, sig inspection.Signatures) (model.Handover, error) {
	sums := make([]string, 0, 2)
	for _, raw := range []string{sig.Client, sig.Representative} {
		data, err := DecodeDataURL(raw)
		if err != nil {
			return h, fmt.Errorf("decoding signature: %w", err)
		}
		sum, err := s.store(ctx, KindSignature, data)
		if err != nil {
			return h, err
		}
		sums = append(sums, sum)
	}
	h.SignatureChecksums = sums

	if err := s.journal.SaveHandover(ctx, h); err != nil {
		return h, fmt.Errorf("journaling handover: %w", err)
	}
	s.logger.Info("handover archived", "handover", h.ID, "unit", h.UnitID, "signatures", len(sums))
	return h, nil
}

// Report summarizes an archive run.
type Report struct {
	Archived int
	Failed   int
}

// Run downloads every journaled acta that is not archived yet. A failed
// download is logged and counted; it is retried on the next run.
func (s *Service) Run(ctx context.Context) (Report, error) {
	var rep Report
	if s.fetcher == nil {
		return rep, fmt.Errorf("archive has no PDF fetcher")
	}

	pending, err := s.journal.PendingActas(ctx)
	if err != nil {
		return rep, fmt.Errorf("listing pending actas: %w", err)
	}

	for _, h := range pending {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.archiveActa(ctx, h); err != nil {
			rep.Failed++
			s.logger.Warn("acta not archived", "handover", h.ID, "url", h.PDFURL, "error", err)
			continue
		}
		rep.Archived++
	}

	s.logger.Info("archive run complete", "archived", rep.Archived, "failed", rep.Failed)
	return rep, nil
}

func (s *Service) archiveActa(ctx context.Context, h model.Handover) error {
	body, err := s.fetcher.GetText(ctx, h.PDFURL, s.retries)
	if err != nil {
		return fmt.Errorf("downloading acta: %w", err)
	}
	data := []byte(body)
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return fmt.Errorf("acta URL did not return a PDF (%d bytes)", len(data))
	}

	sum, err := s.store(ctx, KindActa, data)
	if err != nil {
		return err
	}
	if err := s.journal.SetActaChecksum(ctx, h.ID, sum); err != nil {
		return fmt.Errorf("journaling acta: %w", err)
	}
	s.logger.Info("acta archived", "handover", h.ID, "checksum", sum, "size", len(data))
	return nil
}

// store encrypts data into the vault under its plaintext checksum and
// records it in the journal. Content already in both is skipped.
func (s *Service) store(ctx context.Context, kind string, data []byte) (string, error) {
	sum := Checksum(data)

	known, err := s.journal.FindContent(ctx, sum)
	if err != nil {
		return "", fmt.Errorf("checking for existing content: %w", err)
	}
	if known != nil {
		inVault, err := s.vault.HasContent(ctx, sum)
		if err != nil {
			return "", fmt.Errorf("checking vault: %w", err)
		}
		if inVault {
			s.logger.Debug("content deduplicated", "checksum", sum, "kind", kind)
			return sum, nil
		}
	}

	var sealed bytes.Buffer
	if err := s.enc.Encrypt(bytes.NewReader(data), &sealed); err != nil {
		return "", fmt.Errorf("encrypting %s: %w", kind, err)
	}
	if err := s.vault.PutContent(ctx, sum, &sealed, int64(sealed.Len())); err != nil {
		return "", fmt.Errorf("uploading %s to vault: %w", kind, err)
	}
	if err := s.journal.EnsureContent(ctx, sum, kind, int64(len(data))); err != nil {
		return "", fmt.Errorf("recording %s: %w", kind, err)
	}
	return sum, nil
}

// List returns the most recent journaled handovers.
func (s *Service) List(ctx context.Context, limit int) ([]model.Handover, error) {
	return s.journal.ListHandovers(ctx, limit)
}

// Handover returns one journaled handover, or nil.
func (s *Service) Handover(ctx context.Context, id string) (*model.Handover, error) {
	return s.journal.FindHandover(ctx, id)
}

// Get decrypts the archived content with checksum into w and verifies it.
func (s *Service) Get(ctx context.Context, checksum string, dec encryption.Decrypter, w io.Writer) error {
	var sealed bytes.Buffer
	if err := s.vault.GetContent(ctx, checksum, &sealed); err != nil {
		return fmt.Errorf("reading from vault: %w", err)
	}

	var plain bytes.Buffer
	if err := dec.Decrypt(&sealed, &plain); err != nil {
		return fmt.Errorf("decrypting %s: %w", checksum, err)
	}
	if got := Checksum(plain.Bytes()); got != checksum {
		return fmt.Errorf("checksum mismatch: vault returned %s for %s", got, checksum)
	}

	_, err := w.Write(plain.Bytes())
	return err
}

// BackupJournal uploads an encrypted copy of the journal as this device's
// snapshot, tagged with version.
func (s *Service) BackupJournal(ctx context.Context, version int64) error {
	dir, err := os.MkdirTemp("", "acta-journal-*")
	if err != nil {
		return fmt.Errorf("creating temp dir for journal backup: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "journal.db")
	if err := s.journal.BackupTo(path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading journal backup: %w", err)
	}

	var sealed bytes.Buffer
	if err := s.enc.Encrypt(bytes.NewReader(data), &sealed); err != nil {
		return fmt.Errorf("encrypting journal: %w", err)
	}
	if err := s.vault.PutSnapshot(ctx, s.deviceID, JournalSnapshot, &sealed, int64(sealed.Len()), version); err != nil {
		return fmt.Errorf("uploading journal to vault: %w", err)
	}
	s.logger.Info("journal snapshot uploaded", "version", version, "size", len(data))
	return nil
}

// RestoreJournal writes the decrypted journal snapshot to w.
func (s *Service) RestoreJournal(ctx context.Context, dec encryption.Decrypter, w io.Writer) error {
	var sealed bytes.Buffer
	if err := s.vault.GetSnapshot(ctx, s.deviceID, JournalSnapshot, &sealed); err != nil {
		return fmt.Errorf("reading journal snapshot: %w", err)
	}
	if err := dec.Decrypt(&sealed, w); err != nil {
		return fmt.Errorf("decrypting journal snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion returns the version of this device's journal in the vault.
func (s *Service) SnapshotVersion(ctx context.Context) (int64, error) {
	return s.vault.SnapshotVersion(ctx, s.deviceID, JournalSnapshot)
}

// Checksum is the lowercase hex SHA-256 of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
