// Package backend talks to the spreadsheet-script web app that stores
// schedules and renders actas, plus the published CSV exports used as a
// fallback source.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"acta-go/internal/api"
	"acta-go/internal/fault"
	"acta-go/internal/inspection"
	"acta-go/internal/model"
	"acta-go/internal/normalize"
)

// Actions names the remote procedures. Revisions of the script disagree on
// these, so they are configuration.
type Actions struct {
	Login           string `toml:"login"`
	Assignments     string `toml:"assignments"`
	StartProcess    string `toml:"start_process"`
	CompleteProcess string `toml:"complete_process"`
	ActaStatus      string `toml:"acta_status"`
	Health          string `toml:"health"`
}

func DefaultActions() Actions {
	return Actions{
		Login:           "login",
		Assignments:     "getAssignments",
		StartProcess:    "startProcess",
		CompleteProcess: "completeProcess",
		ActaStatus:      "getActaStatus",
		Health:          "health",
	}
}

// withDefaults fills unset action names.
func (a Actions) withDefaults() Actions {
	d := DefaultActions()
	if a.Login == "" {
		a.Login = d.Login
	}
	if a.Assignments == "" {
		a.Assignments = d.Assignments
	}
	if a.StartProcess == "" {
		a.StartProcess = d.StartProcess
	}
	if a.CompleteProcess == "" {
		a.CompleteProcess = d.CompleteProcess
	}
	if a.ActaStatus == "" {
		a.ActaStatus = d.ActaStatus
	}
	if a.Health == "" {
		a.Health = d.Health
	}
	return a
}

// Assignment keying fields.
const (
	KeyEmail = "email"
	KeyRUT   = "rut"
)

// Config configures the script adapter.
type Config struct {
	URL            string
	APIKey         string
	Retries        int
	Actions        Actions
	AssignmentsKey string
}

// AppsScript implements inspection.Backend over the script's single POST endpoint.
type AppsScript struct {
	cfg    Config
	client *api.Client
	logger *slog.Logger
}

// NewAppsScript validates cfg and returns the adapter.
func NewAppsScript(cfg Config, client *api.Client, logger *slog.Logger) (*AppsScript, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fault.New(fault.Configuration, "backend webapp_url is not configured")
	}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, fault.New(fault.Configuration, "backend webapp_url must be an http(s) URL: %q", cfg.URL)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fault.New(fault.Configuration, "backend api_key is not configured")
	}
	switch cfg.AssignmentsKey {
	case "":
		cfg.AssignmentsKey = KeyEmail
	case KeyEmail, KeyRUT:
	default:
		return nil, fault.New(fault.Configuration, "assignments_key must be %q or %q, got %q", KeyEmail, KeyRUT, cfg.AssignmentsKey)
	}
	if cfg.Retries < 0 {
		cfg.Retries = api.DefaultRetries
	}
	cfg.Actions = cfg.Actions.withDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &AppsScript{cfg: cfg, client: client, logger: logger}, nil
}

// call posts {apiKey, action, ...fields} as text/plain, which the script
// host accepts without a CORS preflight.
func (a *AppsScript) call(ctx context.Context, action string, fields map[string]any) (api.Result, error) {
	body := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		body[k] = v
	}
	body["apiKey"] = a.cfg.APIKey
	body["action"] = action

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fault.Wrap(fault.Validation, err, "encoding request")
	}

	return a.client.Request(ctx, a.cfg.URL, api.Options{
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "text/plain;charset=utf-8"},
		Body:    data,
		Action:  action,
	}, a.cfg.Retries)
}

func (a *AppsScript) Login(ctx context.Context, credential string) (model.Inspector, error) {
	key := KeyRUT
	if strings.Contains(credential, "@") {
		key = KeyEmail
	}

	res, err := a.call(ctx, a.cfg.Actions.Login, map[string]any{key: credential})
	if err != nil {
		return model.Inspector{}, err
	}

	user := res.Object("user", "data")
	if user == nil {
		user = res
	}
	return model.Inspector{
		RUT:   user.String("rut", "RUT"),
		Name:  user.String("nombre", "name", "nombre_completo"),
		Email: user.String("email", "correo"),
		Role:  user.String("rol", "role"),
	}, nil
}

func (a *AppsScript) Assignments(ctx context.Context, who model.Inspector) ([]normalize.Row, error) {
	fields := map[string]any{}
	if a.cfg.AssignmentsKey == KeyRUT || who.Email == "" {
		fields[KeyRUT] = who.RUT
	} else {
		fields[KeyEmail] = who.Email
	}

	res, err := a.call(ctx, a.cfg.Actions.Assignments, fields)
	if err != nil {
		return nil, err
	}

	rows, ok := res.Rows("data", "assignments", "asignaciones", "rows")
	if !ok {
		if nested := res.Object("data"); nested != nil {
			rows, ok = nested.Rows("assignments", "asignaciones", "rows")
		}
	}
	if !ok {
		a.logger.Warn("assignments response carries no rows", "keys", keysOf(res))
	}

	out := make([]normalize.Row, len(rows))
	for i, r := range rows {
		out[i] = normalize.Row(r)
	}
	return out, nil
}

func (a *AppsScript) StartProcess(ctx context.Context, req inspection.StartRequest) (string, error) {
	res, err := a.call(ctx, a.cfg.Actions.StartProcess, map[string]any{
		"inspector":    req.Assignee,
		"unitId":       req.Unit.ID,
		"proyecto":     req.ProjectName,
		"depto":        req.Unit.Number,
		"fecha":        req.Unit.Date,
		"hora":         req.Unit.Time,
		"tipo":         req.ProcessType.Label(),
		"tipo_proceso": req.Unit.ProcessTypeLabel,
		"deviceId":     req.DeviceID,
	})
	if err != nil {
		return "", err
	}
	return firstString(res, "processId", "process_id", "id_proceso"), nil
}

func (a *AppsScript) CompleteProcess(ctx context.Context, sub inspection.Submission) (inspection.Completion, error) {
	fields, err := fieldsOf(sub)
	if err != nil {
		return inspection.Completion{}, err
	}

	res, err := a.call(ctx, a.cfg.Actions.CompleteProcess, fields)
	if err != nil {
		return inspection.Completion{}, err
	}
	return inspection.Completion{
		PDFURL:  firstString(res, "pdf_url", "pdfUrl", "acta_url"),
		Message: res.String("message"),
	}, nil
}

func (a *AppsScript) ActaStatus(ctx context.Context, unit model.Unit) (inspection.ActaStatus, error) {
	res, err := a.call(ctx, a.cfg.Actions.ActaStatus, map[string]any{
		"processId": unit.ProcessID,
		"unitId":    unit.ID,
		"inspector": unit.InspectorID,
		"depto":     unit.Number,
		"fecha":     unit.Date,
		"hora":      unit.Time,
	})
	if err != nil {
		return inspection.ActaStatus{}, err
	}

	url := firstString(res, "pdf_url", "pdfUrl", "acta_url")
	status := firstString(res, "acta_status", "status", "estado")
	generated := url != "" || normalize.ActaGenerated(status)
	if b, ok := res["generated"].(bool); ok {
		generated = generated || b
	}
	return inspection.ActaStatus{
		Generated: generated,
		URL:       url,
		Date:      firstString(res, "fecha_acta", "date"),
	}, nil
}

func (a *AppsScript) Health(ctx context.Context) error {
	_, err := a.call(ctx, a.cfg.Actions.Health, nil)
	return err
}

// firstString looks at the top level, then inside data.
func firstString(res api.Result, keys ...string) string {
	if s := res.String(keys...); s != "" {
		return s
	}
	if data := res.Object("data"); data != nil {
		return data.String(keys...)
	}
	return ""
}

func fieldsOf(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", v, err)
	}
	return m, nil
}

func keysOf(m api.Result) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

var _ inspection.Backend = (*AppsScript)(nil)
