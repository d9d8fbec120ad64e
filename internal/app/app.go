package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"acta-go/internal/api"
	"acta-go/internal/archive"
	"acta-go/internal/backend"
	"acta-go/internal/calendar"
	"acta-go/internal/config"
	"acta-go/internal/database"
	"acta-go/internal/encryption"
	"acta-go/internal/fault"
	"acta-go/internal/inspection"
	"acta-go/internal/model"
	"acta-go/internal/vault"
)

// keepCalls is how many API call records survive a journal snapshot.
const keepCalls = 500

// Options tune how the app is wired. The zero value is production.
type Options struct {
	// Echo receives a copy of every log line (--verbose).
	Echo io.Writer
	// HTTPClient replaces the backend HTTP client.
	HTTPClient *http.Client
	Clock      inspection.Clock
	Retry      *api.RetryConfig
}

// ActaApp is the application layer between the CLI and the inspection
// store. It constructs all dependencies from config and owns their
// lifecycle; the caller must call Close.
type ActaApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	vault     vault.Vault
	encryptor encryption.Encryptor
	client    *api.Client
	metrics   *api.Metrics
	backend   inspection.Backend
	store     *inspection.Store
	archive   *archive.Service
	holidays  *calendar.Holidays
	op        *Operation
	logger    *slog.Logger
	logFile   *os.File
}

// NewActaApp creates a fully wired ActaApp. operation names the CLI
// command being run (e.g. "agenda", "archive run").
func NewActaApp(ctx context.Context, cfg *config.Config, operation, parameters string, opts Options) (*ActaApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	resolver, err := calendar.NewResolver(cfg.Dates.Formats, loc)
	if err != nil {
		return nil, fault.Wrap(fault.Configuration, err, "invalid date formats")
	}
	columns, err := cfg.ColumnMap()
	if err != nil {
		return nil, fault.Wrap(fault.Configuration, err, "invalid column aliases")
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, cfg.LogLevel, opts.Echo)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &ActaApp{
		cfg:      cfg,
		holidays: calendar.NewHolidays(),
		op:       NewOperation(operation, parameters),
		logger:   logger,
		logFile:  logFile,
	}
	if err := a.open(ctx); err != nil {
		a.closeQuietly()
		return nil, err
	}

	retry := api.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	a.metrics = api.NewMetrics()
	clientOpts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithCallSink(a.db),
		api.WithMetrics(a.metrics),
		api.WithRetryConfig(retry),
		api.WithRedaction(cfg.Backend.APIKey),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(opts.HTTPClient))
	}
	a.client = api.NewClient(clientOpts...)

	primary, err := backend.NewAppsScript(backend.Config{
		URL:            cfg.Backend.WebAppURL,
		APIKey:         cfg.Backend.APIKey,
		Retries:        cfg.Backend.Retries,
		AssignmentsKey: cfg.Backend.AssignmentsKey,
		Actions: backend.Actions{
			Login:           cfg.Backend.Actions.Login,
			Assignments:     cfg.Backend.Actions.Assignments,
			StartProcess:    cfg.Backend.Actions.StartProcess,
			CompleteProcess: cfg.Backend.Actions.CompleteProcess,
			ActaStatus:      cfg.Backend.Actions.ActaStatus,
			Health:          cfg.Backend.Actions.Health,
		},
	}, a.client, logger)
	if err != nil {
		a.closeQuietly()
		return nil, err
	}
	a.backend = primary
	if cfg.Sheet.RosterCSVURL != "" || cfg.Sheet.UnitsCSVURL != "" {
		a.backend = backend.NewSheetFallback(primary, backend.SheetConfig{
			RosterURL: cfg.Sheet.RosterCSVURL,
			UnitsURL:  cfg.Sheet.UnitsCSVURL,
			Retries:   cfg.Backend.Retries,
		}, a.client, logger)
	}

	a.archive = archive.NewService(a.db, a.vault, a.encryptor, a.client, cfg.DeviceID, cfg.Backend.Retries, logger)

	a.store = inspection.New(inspection.Config{
		DeviceID:     cfg.DeviceID,
		Comuna:       cfg.Comuna,
		UpcomingDays: cfg.Agenda.UpcomingDays,
		Resolver:     resolver,
		Columns:      columns,
	}, a.backend, inspection.Deps{
		Clock:    opts.Clock,
		Logger:   &slogAdapter{l: logger},
		Recorder: a.archive,
	})

	return a, nil
}

// open sets up the journal, vault and encryptor.
func (a *ActaApp) open(ctx context.Context) error {
	db, err := database.NewDatabaseFromConfig(a.cfg.Database, a.cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("creating journal: %w", err)
	}
	a.db = db

	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("journal schema out of date: %w", err)
	}
	if err := db.RegisterDevice(ctx, a.cfg.DeviceID); err != nil {
		return err
	}

	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Vault)
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}
	a.vault = v

	// A newer snapshot in the vault means this journal missed operations.
	remote, err := v.SnapshotVersion(ctx, a.cfg.DeviceID, archive.JournalSnapshot)
	if err != nil {
		return fmt.Errorf("checking remote journal version: %w", err)
	}
	local, err := db.MaxOperationID(ctx)
	if err != nil {
		return fmt.Errorf("checking local journal version: %w", err)
	}
	if remote > local {
		return fmt.Errorf("local journal is behind the vault (local=%d, remote=%d): restore it with 'acta archive journal'", local, remote)
	}

	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc
	return nil
}

func (a *ActaApp) Config() *config.Config          { return a.cfg }
func (a *ActaApp) Store() *inspection.Store        { return a.store }
func (a *ActaApp) Archive() *archive.Service       { return a.archive }
func (a *ActaApp) Logger() *slog.Logger            { return a.logger }
func (a *ActaApp) Encryptor() encryption.Encryptor { return a.encryptor }
func (a *ActaApp) Operation() *Operation           { return a.op }

// Persist writes the operation to the journal, giving it an id. Commands
// that change remote or journal state call it before doing so.
func (a *ActaApp) Persist(ctx context.Context) error {
	if a.op.Persisted() {
		return nil
	}
	dbOp, err := a.db.CreateOperation(ctx, a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Login starts a session. An empty credential falls back to the
// configured inspector.
func (a *ActaApp) Login(ctx context.Context, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		credential = a.cfg.Inspector
	}
	if credential == "" {
		return fault.New(fault.Validation, "no inspector given (use --as or set inspector / %s)", config.EnvInspector)
	}
	return a.store.Login(ctx, credential)
}

// Holiday names the public holiday on the unit's visit date, if any.
func (a *ActaApp) Holiday(u model.Unit) (string, bool) {
	d, ok := a.store.Resolver().ParseDate(u.Date)
	if !ok {
		return "", false
	}
	return a.holidays.Name(d)
}

// Health probes the backend.
func (a *ActaApp) Health(ctx context.Context) model.ConnectionStatus {
	return a.store.CheckConnection(ctx)
}

// StartProcess moves a unit into EN_PROCESO.
func (a *ActaApp) StartProcess(ctx context.Context, u model.Unit, pt model.ProcessType) (string, error) {
	if err := a.Persist(ctx); err != nil {
		return "", err
	}
	id, err := a.store.StartProcess(ctx, u, pt)
	return id, a.op.Fail(err)
}

// Submit completes the selected unit's inspection.
func (a *ActaApp) Submit(ctx context.Context, sig inspection.Signatures) (*inspection.Completion, error) {
	if err := a.Persist(ctx); err != nil {
		return nil, err
	}
	comp, err := a.store.SubmitInspection(ctx, sig)
	return comp, a.op.Fail(err)
}

// RunArchive downloads pending actas into the vault.
func (a *ActaApp) RunArchive(ctx context.Context) (archive.Report, error) {
	if err := a.Persist(ctx); err != nil {
		return archive.Report{}, err
	}
	rep, err := a.archive.Run(ctx)
	return rep, a.op.Fail(err)
}

// History returns the most recent journaled operations.
func (a *ActaApp) History(ctx context.Context, limit int) ([]*database.Operation, error) {
	return a.db.ListOperations(ctx, limit)
}

// LastCall returns the most recent backend call of this process.
func (a *ActaApp) LastCall() (api.Call, bool) {
	return a.client.Diagnostics().Last()
}

// RecentCalls returns journaled backend calls, newest first.
func (a *ActaApp) RecentCalls(ctx context.Context, limit int) ([]api.Call, error) {
	return a.db.RecentCalls(ctx, limit)
}

// WriteMetrics writes the client metrics in the Prometheus text format.
func (a *ActaApp) WriteMetrics(w io.Writer) error {
	return a.metrics.WriteText(w)
}

// ValidateVault checks that the vault is reachable.
func (a *ActaApp) ValidateVault(ctx context.Context) error {
	return a.vault.ValidateSetup(ctx)
}

// Close finalizes the operation and releases resources. Persisted
// operations also prune old call records and upload an encrypted journal
// snapshot tagged with the operation id.
func (a *ActaApp) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.store != nil {
		a.store.Dispose()
	}

	if a.db != nil && a.op.Persisted() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := a.db.FinishOperation(ctx, a.op.ID, a.op.Status); err != nil {
			keep(fmt.Errorf("finishing operation: %w", err))
		}
		if _, err := a.db.PruneCalls(ctx, keepCalls); err != nil {
			a.logger.Warn("pruning call records failed", "error", err)
		}
		if a.encryptor != nil && a.encryptor.IsConfigured() {
			keep(a.archive.BackupJournal(ctx, a.op.ID))
		} else {
			a.logger.Warn("archive keys not set up, journal snapshot skipped")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			keep(fmt.Errorf("closing journal: %w", err))
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

func (a *ActaApp) closeQuietly() {
	if a.db != nil {
		a.db.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
