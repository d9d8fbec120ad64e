package backend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"acta-go/internal/api"
	"acta-go/internal/fault"
	"acta-go/internal/inspection"
	"acta-go/internal/model"
	"acta-go/internal/normalize"
	"acta-go/internal/rut"
)

// SheetConfig points at the published CSV exports.
type SheetConfig struct {
	RosterURL string
	UnitsURL  string
	Retries   int
}

// SheetFallback serves Login and Assignments from the CSV exports when the
// primary backend is unreachable. Logic rejections from the primary are
// final and never fall back.
type SheetFallback struct {
	inspection.Backend

	cfg    SheetConfig
	client *api.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewSheetFallback(primary inspection.Backend, cfg SheetConfig, client *api.Client, logger *slog.Logger) *SheetFallback {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SheetFallback{Backend: primary, cfg: cfg, client: client, logger: logger, now: time.Now}
}

func (s *SheetFallback) Login(ctx context.Context, credential string) (model.Inspector, error) {
	who, err := s.Backend.Login(ctx, credential)
	if err == nil || !s.shouldFallBack(err, s.cfg.RosterURL) {
		return who, err
	}
	s.logger.Warn("login falling back to roster export", "error", err)

	rows, ferr := s.fetch(ctx, s.cfg.RosterURL)
	if ferr != nil {
		return model.Inspector{}, ferr
	}
	who, ok := MatchRoster(rows, credential)
	if !ok {
		return model.Inspector{}, fault.New(fault.Logic, "usuario no encontrado en la nómina")
	}
	return who, nil
}

func (s *SheetFallback) Assignments(ctx context.Context, who model.Inspector) ([]normalize.Row, error) {
	rows, err := s.Backend.Assignments(ctx, who)
	if err == nil || !s.shouldFallBack(err, s.cfg.UnitsURL) {
		return rows, err
	}
	s.logger.Warn("assignments falling back to units export", "error", err)
	return s.fetch(ctx, s.cfg.UnitsURL)
}

func (s *SheetFallback) shouldFallBack(err error, target string) bool {
	if target == "" {
		return false
	}
	switch fault.KindOf(err) {
	case fault.Timeout, fault.Network, fault.Server:
		return true
	default:
		return false
	}
}

func (s *SheetFallback) fetch(ctx context.Context, raw string) ([]normalize.Row, error) {
	text, err := s.client.GetText(ctx, cacheBust(raw, s.now()), s.cfg.Retries)
	if err != nil {
		return nil, err
	}
	rows, err := ParseCSV(strings.NewReader(text))
	if err != nil {
		return nil, fault.Wrap(fault.Server, err, "export CSV ilegible")
	}
	return rows, nil
}

// cacheBust appends a timestamp parameter so intermediaries never serve a
// stale export.
func cacheBust(raw string, now time.Time) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// ParseCSV reads a header row and returns one Row per non-empty record.
func ParseCSV(r io.Reader) ([]normalize.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	var rows []normalize.Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}

		row := make(normalize.Row, len(header))
		empty := true
		for i, h := range header {
			if i >= len(rec) {
				break
			}
			v := strings.TrimSpace(rec[i])
			if v != "" {
				empty = false
			}
			row[strings.TrimSpace(h)] = v
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// MatchRoster finds the roster entry for a RUT or email credential.
// Columns are located by substring since the roster headers are free text.
func MatchRoster(rows []normalize.Row, credential string) (model.Inspector, bool) {
	cred := strings.ToLower(strings.TrimSpace(credential))
	byEmail := strings.Contains(cred, "@")
	credKey := rut.Key(cred)

	for _, row := range rows {
		emailKey := findKey(row, "email")
		rutKey := findKey(row, "rut", "id")
		nameKey := findKey(row, "nombre", "completo")
		roleKey := findKey(row, "rol")

		email := strings.ToLower(normalize.Stringify(row[emailKey]))
		id := rut.Key(normalize.Stringify(row[rutKey]))

		if (byEmail && email != "" && email == cred) || (!byEmail && id != "" && id == credKey) {
			who := model.Inspector{
				RUT:   normalize.Stringify(row[rutKey]),
				Name:  normalize.Stringify(row[nameKey]),
				Email: email,
				Role:  normalize.Stringify(row[roleKey]),
			}
			if who.Name == "" {
				who.Name = "Usuario"
			}
			if who.Role == "" {
				who.Role = "Inspector"
			}
			if !byEmail && who.RUT == "" {
				who.RUT = strings.ToUpper(strings.TrimSpace(credential))
			}
			return who, true
		}
	}
	return model.Inspector{}, false
}

func findKey(row normalize.Row, needles ...string) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	// Deterministic choice when several headers match.
	slices.Sort(keys)
	for _, k := range keys {
		lk := strings.ToLower(k)
		for _, n := range needles {
			if strings.Contains(lk, n) {
				return k
			}
		}
	}
	return ""
}
