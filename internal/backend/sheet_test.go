package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acta-go/internal/backend"
	"acta-go/internal/fault"
	"acta-go/internal/model"
	"acta-go/internal/normalize"
	"acta-go/internal/testutil"
)

const rosterCSV = "\uFEFFRUT,Nombre Completo,Email,Rol\n" +
	"11.111.111-1,Ana Pérez,Ana@Example.cl,Inspectora\n" +
	"22222222-2,Luis Soto,,\n" +
	",,,\n"

const unitsCSV = `Proyecto,Depto,Fecha Entrega,Hora,Inspector
Edificio A,101,18/10/2026,10:00,11111111-1
"Edificio B, Torre 2",202,19/10/2026,11:30,11111111-1
`

func exportServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		switch r.URL.Path {
		case "/roster.csv":
			w.Write([]byte(rosterCSV))
		case "/units.csv":
			w.Write([]byte(unitsCSV))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &paths
}

func TestParseCSV(t *testing.T) {
	rows, err := backend.ParseCSV(strings.NewReader(unitsCSV))

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Edificio B, Torre 2", rows[1]["Proyecto"])
	assert.Equal(t, "11:30", rows[1]["Hora"])
}

func TestParseCSV_SkipsBlankRowsAndBOM(t *testing.T) {
	rows, err := backend.ParseCSV(strings.NewReader(rosterCSV))

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "11.111.111-1", rows[0]["RUT"])
}

func TestParseCSV_Empty(t *testing.T) {
	rows, err := backend.ParseCSV(strings.NewReader(""))

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMatchRoster(t *testing.T) {
	rows, err := backend.ParseCSV(strings.NewReader(rosterCSV))
	require.NoError(t, err)

	tests := []struct {
		name       string
		credential string
		want       model.Inspector
		found      bool
	}{
		{"rut without dots", "11111111-1", model.Inspector{RUT: "11.111.111-1", Name: "Ana Pérez", Email: "ana@example.cl", Role: "Inspectora"}, true},
		{"email any case", "ANA@example.cl", model.Inspector{RUT: "11.111.111-1", Name: "Ana Pérez", Email: "ana@example.cl", Role: "Inspectora"}, true},
		{"defaults for blanks", "22.222.222-2", model.Inspector{RUT: "22222222-2", Name: "Luis Soto", Role: "Inspector"}, true},
		{"unknown", "33333333-3", model.Inspector{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := backend.MatchRoster(rows, tt.credential)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSheetFallback_LoginOnNetworkFailure(t *testing.T) {
	server, paths := exportServer(t)
	primary := testutil.NewFakeBackend()
	primary.LoginErr = fault.New(fault.Network, "connection refused")
	sheet := backend.NewSheetFallback(primary, backend.SheetConfig{RosterURL: server.URL + "/roster.csv"}, fastClient(), nil)

	who, err := sheet.Login(context.Background(), "11111111-1")

	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", who.Name)
	require.Len(t, *paths, 1)
	assert.Contains(t, (*paths)[0], "t=")
}

func TestSheetFallback_UnknownUserInRoster(t *testing.T) {
	server, _ := exportServer(t)
	primary := testutil.NewFakeBackend()
	primary.LoginErr = fault.New(fault.Timeout, "timeout")
	sheet := backend.NewSheetFallback(primary, backend.SheetConfig{RosterURL: server.URL + "/roster.csv"}, fastClient(), nil)

	_, err := sheet.Login(context.Background(), "99999999-9")

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Logic))
}

func TestSheetFallback_LogicRejectionIsFinal(t *testing.T) {
	server, paths := exportServer(t)
	primary := testutil.NewFakeBackend()
	primary.LoginErr = fault.New(fault.Logic, "Usuario no autorizado")
	sheet := backend.NewSheetFallback(primary, backend.SheetConfig{RosterURL: server.URL + "/roster.csv"}, fastClient(), nil)

	_, err := sheet.Login(context.Background(), "11111111-1")

	require.Error(t, err)
	assert.Equal(t, "Usuario no autorizado", fault.Message(err))
	assert.Empty(t, *paths)
}

func TestSheetFallback_NoExportConfigured(t *testing.T) {
	primary := testutil.NewFakeBackend()
	primary.AssignmentsErr = fault.ServerError(502, "bad gateway")
	sheet := backend.NewSheetFallback(primary, backend.SheetConfig{}, fastClient(), nil)

	_, err := sheet.Assignments(context.Background(), model.Inspector{RUT: "1-9"})

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Server))
}

func TestSheetFallback_AssignmentsFromExport(t *testing.T) {
	server, _ := exportServer(t)
	primary := testutil.NewFakeBackend()
	primary.AssignmentsErr = fault.ServerError(500, "internal")
	sheet := backend.NewSheetFallback(primary, backend.SheetConfig{UnitsURL: server.URL + "/units.csv"}, fastClient(), nil)

	rows, err := sheet.Assignments(context.Background(), model.Inspector{RUT: "11111111-1"})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	result := normalize.Normalize(rows, normalize.DefaultColumns())
	assert.Len(t, result.Units, 2)
}

func TestSheetFallback_PrimarySuccessPassesThrough(t *testing.T) {
	primary := testutil.NewFakeBackend()
	primary.Inspector = model.Inspector{RUT: "1-9", Name: "Primary"}
	sheet := backend.NewSheetFallback(primary, backend.SheetConfig{RosterURL: "http://127.0.0.1:1/roster.csv"}, fastClient(), nil)

	who, err := sheet.Login(context.Background(), "1-9")

	require.NoError(t, err)
	assert.Equal(t, "Primary", who.Name)
	assert.NoError(t, sheet.Health(context.Background()))
}
