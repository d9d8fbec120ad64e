package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acta-go/internal/api"
	"acta-go/internal/config"
	"acta-go/internal/inspection"
	"acta-go/internal/mockapi"
	"acta-go/internal/model"
	"acta-go/internal/testutil"
)

var today = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type env struct {
	mock   *mockapi.Server
	server *httptest.Server
	cfg    *config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ids := 0
	mock := mockapi.New("key",
		mockapi.WithClock(func() time.Time { return today }),
		mockapi.WithIDs(func() string { ids++; return "proc-" + string(rune('0'+ids)) }),
	)
	mock.Seed(mockapi.SampleInspectors(), mockapi.SampleRows(today))
	server := httptest.NewServer(mock.Handler())
	t.Cleanup(server.Close)

	base := t.TempDir()
	cfg := config.NewConfig("dev-test", base)
	cfg.Timezone = "UTC"
	cfg.Backend.WebAppURL = server.URL + "/exec"
	cfg.Backend.APIKey = "key"
	cfg.Backend.Retries = 0
	cfg.Encryption.Type = "test"
	return &env{mock: mock, server: server, cfg: cfg}
}

func (e *env) open(t *testing.T, operation string) *ActaApp {
	t.Helper()
	a, err := NewActaApp(context.Background(), e.cfg, operation, "", Options{
		Clock: testutil.NewStubClock(today),
		Retry: &api.RetryConfig{BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 2 * time.Millisecond},
	})
	require.NoError(t, err)
	return a
}

func findUnit(units []model.Unit, number string) model.Unit {
	for _, u := range units {
		if u.Number == number {
			return u
		}
	}
	return model.Unit{}
}

func writeSignature(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("\x89PNG\r\n\x1a\n"+name), 0600))
	return p
}

func TestActaApp_InspectionFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.open(t, "shell")

	require.NoError(t, a.Login(ctx, "11111111-1"))
	todays := a.Store().ScheduledToday()
	require.Len(t, todays, 2)

	unit := findUnit(todays, "101")
	pid, err := a.StartProcess(ctx, unit, model.PreEntrega)
	require.NoError(t, err)
	assert.True(t, a.Operation().Persisted())

	_, err = a.Store().AddObservation(inspection.ObservationDraft{RoomID: "r2", Description: "Mueble sin manilla"})
	require.NoError(t, err)

	sig, err := LoadSignatures(writeSignature(t, "cliente.png"), writeSignature(t, "rep.png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig.Client, "data:image/png;base64,"))

	comp, err := a.Submit(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, e.server.URL+"/actas/"+pid+".pdf", comp.PDFURL)
	require.NotEmpty(t, comp.HandoverID)

	h, err := a.Archive().Handover(ctx, comp.HandoverID)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Len(t, h.SignatureChecksums, 2)
	assert.Empty(t, h.ActaChecksum)

	rep, err := a.RunArchive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Archived)

	h, err = a.Archive().Handover(ctx, comp.HandoverID)
	require.NoError(t, err)
	assert.NotEmpty(t, h.ActaChecksum)

	opID := a.Operation().ID
	require.NoError(t, a.Close())

	// The journal snapshot carries the operation id.
	a = e.open(t, "history")
	defer a.Close()
	version, err := a.Archive().SnapshotVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, opID, version)

	ops, err := a.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "shell", ops[0].Operation)
	assert.Equal(t, StatusSuccess, ops[0].Status)
}

func TestActaApp_ReadOnlyCommandsAreNotJournaled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.open(t, "agenda")
	require.NoError(t, a.Login(ctx, "ana@inmobiliaria.cl"))
	assert.Len(t, a.Store().ScheduledToday(), 2)
	require.NoError(t, a.Close())

	a = e.open(t, "history")
	defer a.Close()
	ops, err := a.History(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ops)
	version, err := a.Archive().SnapshotVersion(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestActaApp_FailedOperationIsRecorded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.open(t, "start")

	require.NoError(t, a.Login(ctx, "11111111-1"))
	e.mock.FailNext(1, 500)
	_, err := a.StartProcess(ctx, findUnit(a.Store().ScheduledToday(), "101"), model.PreEntrega)
	require.Error(t, err)
	assert.Equal(t, StatusError, a.Operation().Status)
	require.NoError(t, a.Close())

	a = e.open(t, "history")
	defer a.Close()
	ops, err := a.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, StatusError, ops[0].Status)
}

func TestActaApp_RefusesStaleJournal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.open(t, "archive run")
	require.NoError(t, a.Persist(ctx))
	require.NoError(t, a.Close())

	// Same vault, fresh journal.
	e.cfg.Database.DataDir = t.TempDir()
	_, err := NewActaApp(ctx, e.cfg, "agenda", "", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acta archive journal")

	_, err = RestoreJournal(ctx, e.cfg, "", "", false)
	assert.ErrorContains(t, err, "--force")

	version, err := RestoreJournal(ctx, e.cfg, "", "", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	a = e.open(t, "agenda")
	require.NoError(t, a.Close())
}

func TestActaApp_LoginFallsBackToConfiguredInspector(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.open(t, "agenda")
	defer a.Close()
	err := a.Login(ctx, "")
	require.Error(t, err)
	assert.Contains(t, Describe(err), "datos inválidos")

	a.cfg.Inspector = "11111111-1"
	require.NoError(t, a.Login(ctx, "  "))
	who, ok := a.Store().Session()
	require.True(t, ok)
	assert.Equal(t, "Ana Pérez", who.Name)
}

func TestActaApp_InvalidConfig(t *testing.T) {
	e := newEnv(t)
	e.cfg.Backend.APIKey = ""
	_, err := NewActaApp(context.Background(), e.cfg, "agenda", "", Options{})
	require.Error(t, err)
	assert.Contains(t, Describe(err), "configuración incompleta")
}

func TestActaApp_Tick(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.open(t, "watch")
	defer a.Close()

	rep := a.Tick(ctx)
	assert.Equal(t, model.ConnectionConnected, rep.Status)
	assert.Error(t, rep.Err, "no session yet")

	require.NoError(t, a.Login(ctx, "11111111-1"))
	_, err := a.StartProcess(ctx, findUnit(a.Store().ScheduledToday(), "102"), model.EntregaFinal)
	require.NoError(t, err)

	rep = a.Tick(ctx)
	require.NoError(t, rep.Err)
	assert.Equal(t, 2, rep.Today)
	assert.Equal(t, 1, rep.Refreshed, "only the unit in progress is checked")
	assert.Equal(t, 0, rep.Generated)
	assert.Contains(t, rep.String(), "hoy=2")

	e.server.Close()
	rep = a.Tick(ctx)
	assert.Equal(t, model.ConnectionError, rep.Status)
	assert.Error(t, rep.Err)
}

func TestActaApp_Diagnostics(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.open(t, "diag")
	defer a.Close()

	assert.Equal(t, model.ConnectionConnected, a.Health(ctx))
	call, ok := a.LastCall()
	require.True(t, ok)
	assert.NotContains(t, call.Request, `"key"`, "api key is redacted")

	var buf bytes.Buffer
	require.NoError(t, a.WriteMetrics(&buf))
	assert.Contains(t, buf.String(), "acta_")

	require.NoError(t, a.ValidateVault(ctx))
}
