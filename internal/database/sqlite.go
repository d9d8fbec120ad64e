package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"acta-go/internal/api"
	"acta-go/internal/database/migrations"
	"acta-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Operation is one CLI invocation in the history log.
type Operation struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Operation  string
	Parameters string
	Status     string
}

// Content is an archived blob known to the journal, keyed by its checksum.
type Content struct {
	ID        string
	Kind      string
	Size      int64
	CreatedAt time.Time
}

// Device is a device identifier this journal has seen.
type Device struct {
	ID        string
	FirstSeen time.Time
	LastSeen  time.Time
}

// SQLiteDatabase is the local journal: device ids, API call diagnostics,
// operation history and submitted handovers.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteDatabase opens the journal at path (or ":memory:") and brings
// its schema up to date.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path, now: time.Now}, nil
}

// OpenConnection opens a SQLite connection with foreign keys enabled.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Device registry

// RegisterDevice records id as seen now.
func (s *SQLiteDatabase) RegisterDevice(ctx context.Context, id string) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device (id, first_seen, last_seen) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`, id, now, now)
	if err != nil {
		return fmt.Errorf("registering device: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) Devices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, first_seen, last_seen FROM device ORDER BY first_seen`)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.FirstSeen, &d.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// API call diagnostics

// RecordCall implements api.CallSink.
func (s *SQLiteDatabase) RecordCall(ctx context.Context, c api.Call) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_calls (endpoint, method, action, attempt, status, request, response, error, called_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Endpoint, c.Method, c.Action, c.Attempt, c.Status, c.Request, c.Response, c.Error, c.At, c.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("recording api call: %w", err)
	}
	return nil
}

// RecentCalls returns up to limit calls, newest first.
func (s *SQLiteDatabase) RecentCalls(ctx context.Context, limit int) ([]api.Call, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT endpoint, method, action, attempt, status, request, response, error, called_at, duration_ms
		FROM api_calls ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing api calls: %w", err)
	}
	defer rows.Close()

	var out []api.Call
	for rows.Next() {
		var c api.Call
		var ms int64
		if err := rows.Scan(&c.Endpoint, &c.Method, &c.Action, &c.Attempt, &c.Status, &c.Request, &c.Response, &c.Error, &c.At, &ms); err != nil {
			return nil, fmt.Errorf("scanning api call: %w", err)
		}
		c.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneCalls keeps only the newest keep calls.
func (s *SQLiteDatabase) PruneCalls(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM api_calls WHERE id NOT IN (SELECT id FROM api_calls ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning api calls: %w", err)
	}
	return res.RowsAffected()
}

// Operation history

func (s *SQLiteDatabase) CreateOperation(ctx context.Context, operation, parameters string) (*Operation, error) {
	op := &Operation{StartedAt: s.now(), Operation: operation, Parameters: parameters, Status: "running"}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (started_at, operation, parameters, status) VALUES (?, ?, ?, ?)`,
		op.StartedAt, op.Operation, op.Parameters, op.Status)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	if op.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FinishOperation(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`, s.now(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

// ListOperations returns up to limit operations, newest first.
func (s *SQLiteDatabase) ListOperations(ctx context.Context, limit int) ([]*Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, operation, parameters, status
		FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var out []*Operation
	for rows.Next() {
		op := &Operation{}
		if err := rows.Scan(&op.ID, &op.StartedAt, &op.FinishedAt, &op.Operation, &op.Parameters, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *SQLiteDatabase) MaxOperationID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM operations`).Scan(&id); err != nil {
		return 0, fmt.Errorf("getting max operation id: %w", err)
	}
	return id, nil
}

// Contents

// EnsureContent records an archived blob. Recording the same checksum
// twice is a no-op.
func (s *SQLiteDatabase) EnsureContent(ctx context.Context, id, kind string, size int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contents (id, kind, size, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`, id, kind, size, s.now())
	if err != nil {
		return fmt.Errorf("recording content: %w", err)
	}
	return nil
}

// FindContent returns nil when the checksum is unknown.
func (s *SQLiteDatabase) FindContent(ctx context.Context, id string) (*Content, error) {
	c := &Content{}
	err := s.db.QueryRowContext(ctx, `SELECT id, kind, size, created_at FROM contents WHERE id = ?`, id).
		Scan(&c.ID, &c.Kind, &c.Size, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding content: %w", err)
	}
	return c, nil
}

// Handovers

// SaveHandover inserts a handover and its signature references. Every
// signature checksum must already be a recorded content.
func (s *SQLiteDatabase) SaveHandover(ctx context.Context, h model.Handover) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO handovers (id, unit_id, process_id, process_type, project, number, submitted_at, pdf_url, acta_checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UnitID, h.ProcessID, string(h.ProcessType), h.Project, h.Number, h.SubmittedAt, h.PDFURL, nullString(h.ActaChecksum))
	if err != nil {
		return fmt.Errorf("inserting handover: %w", err)
	}

	for i, sum := range h.SignatureChecksums {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO handover_signatures (handover_id, position, content_id) VALUES (?, ?, ?)`, h.ID, i, sum)
		if err != nil {
			return fmt.Errorf("inserting signature %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SetActaChecksum links the archived PDF to a handover.
func (s *SQLiteDatabase) SetActaChecksum(ctx context.Context, handoverID, checksum string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE handovers SET acta_checksum = ? WHERE id = ?`, checksum, handoverID)
	if err != nil {
		return fmt.Errorf("setting acta checksum: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("handover %s not found", handoverID)
	}
	return nil
}

// FindHandover returns nil when id is unknown.
func (s *SQLiteDatabase) FindHandover(ctx context.Context, id string) (*model.Handover, error) {
	list, err := s.queryHandovers(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// ListHandovers returns up to limit handovers, newest first.
func (s *SQLiteDatabase) ListHandovers(ctx context.Context, limit int) ([]model.Handover, error) {
	return s.queryHandovers(ctx, `ORDER BY submitted_at DESC, id DESC LIMIT ?`, limit)
}

// PendingActas returns handovers with a PDF URL whose PDF is not archived yet.
func (s *SQLiteDatabase) PendingActas(ctx context.Context) ([]model.Handover, error) {
	return s.queryHandovers(ctx, `WHERE pdf_url != '' AND acta_checksum IS NULL ORDER BY submitted_at`)
}

func (s *SQLiteDatabase) queryHandovers(ctx context.Context, tail string, args ...any) ([]model.Handover, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, unit_id, process_id, process_type, project, number, submitted_at, pdf_url, acta_checksum
		FROM handovers `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("querying handovers: %w", err)
	}

	var out []model.Handover
	for rows.Next() {
		var h model.Handover
		var pt string
		var acta sql.NullString
		if err := rows.Scan(&h.ID, &h.UnitID, &h.ProcessID, &pt, &h.Project, &h.Number, &h.SubmittedAt, &h.PDFURL, &acta); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning handover: %w", err)
		}
		h.ProcessType = model.ProcessType(pt)
		h.ActaChecksum = acta.String
		out = append(out, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating handovers: %w", err)
	}

	// Signatures are loaded after the handover cursor is closed; the
	// in-memory journal has a single connection.
	for i := range out {
		sums, err := s.signatures(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].SignatureChecksums = sums
	}
	return out, nil
}

func (s *SQLiteDatabase) signatures(ctx context.Context, handoverID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_id FROM handover_signatures WHERE handover_id = ? ORDER BY position`, handoverID)
	if err != nil {
		return nil, fmt.Errorf("loading signatures: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning signature: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is up to date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.Check(s.db)
}

// BackupTo writes a consistent copy of the journal to destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ api.CallSink = (*SQLiteDatabase)(nil)
