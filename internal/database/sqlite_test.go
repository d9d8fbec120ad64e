package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"acta-go/internal/api"
	"acta-go/internal/model"
)

// newTestDB creates an in-memory journal with the schema applied and a
// clock that advances one second per read.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	tick := 0
	db.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteDatabase_RegisterDevice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"dev-a", "dev-b", "dev-a"} {
		if err := db.RegisterDevice(ctx, id); err != nil {
			t.Fatalf("RegisterDevice(%s) error = %v", id, err)
		}
	}

	devices, err := db.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(Devices()) = %d, want 2", len(devices))
	}
	if devices[0].ID != "dev-a" || !devices[0].LastSeen.After(devices[0].FirstSeen) {
		t.Errorf("dev-a = %+v, want last_seen updated", devices[0])
	}
}

func TestSQLiteDatabase_Calls(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		err := db.RecordCall(ctx, api.Call{
			Endpoint: "https://script.example/exec",
			Method:   "POST",
			Action:   "health",
			Attempt:  i,
			Status:   200,
			Request:  `{"action":"health","apiKey":"***"}`,
			Response: `{"ok":true}`,
			At:       at.Add(time.Duration(i) * time.Minute),
			Duration: 150 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("RecordCall() error = %v", err)
		}
	}

	calls, err := db.RecentCalls(ctx, 2)
	if err != nil {
		t.Fatalf("RecentCalls() error = %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("len(RecentCalls()) = %d, want 2", len(calls))
	}
	if calls[0].Attempt != 3 {
		t.Errorf("newest attempt = %d, want 3", calls[0].Attempt)
	}
	if calls[0].Duration != 150*time.Millisecond {
		t.Errorf("Duration = %v, want 150ms", calls[0].Duration)
	}
	if !calls[0].At.Equal(at.Add(3 * time.Minute)) {
		t.Errorf("At = %v", calls[0].At)
	}

	pruned, err := db.PruneCalls(ctx, 1)
	if err != nil {
		t.Fatalf("PruneCalls() error = %v", err)
	}
	if pruned != 2 {
		t.Errorf("PruneCalls() = %d, want 2", pruned)
	}
}

func TestSQLiteDatabase_Operations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	maxID, err := db.MaxOperationID(ctx)
	if err != nil || maxID != 0 {
		t.Fatalf("MaxOperationID() = %d, %v; want 0, nil", maxID, err)
	}

	op, err := db.CreateOperation(ctx, "agenda", "--upcoming")
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if op.ID == 0 || op.Status != "running" {
		t.Errorf("op = %+v", op)
	}
	if err := db.FinishOperation(ctx, op.ID, "success"); err != nil {
		t.Fatalf("FinishOperation() error = %v", err)
	}
	if _, err := db.CreateOperation(ctx, "health", ""); err != nil {
		t.Fatal(err)
	}

	ops, err := db.ListOperations(ctx, 10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(ops) = %d, want 2", len(ops))
	}
	if ops[0].Operation != "health" || ops[0].FinishedAt.Valid {
		t.Errorf("newest op = %+v, want unfinished health", ops[0])
	}
	if ops[1].Status != "success" || !ops[1].FinishedAt.Valid {
		t.Errorf("oldest op = %+v, want finished success", ops[1])
	}
}

func TestSQLiteDatabase_Contents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.FindContent(ctx, "abc")
	if err != nil || got != nil {
		t.Fatalf("FindContent(unknown) = %v, %v; want nil, nil", got, err)
	}

	for range 2 {
		if err := db.EnsureContent(ctx, "abc", "signature", 42); err != nil {
			t.Fatalf("EnsureContent() error = %v", err)
		}
	}
	got, err = db.FindContent(ctx, "abc")
	if err != nil || got == nil {
		t.Fatalf("FindContent() = %v, %v", got, err)
	}
	if got.Kind != "signature" || got.Size != 42 {
		t.Errorf("content = %+v", got)
	}
}

func TestSQLiteDatabase_Handovers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, sum := range []string{"sig-client", "sig-rep"} {
		if err := db.EnsureContent(ctx, sum, "signature", 10); err != nil {
			t.Fatal(err)
		}
	}

	submitted := time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)
	h := model.Handover{
		ID:                 "h-1",
		UnitID:             "unit-edificio-a-101",
		ProcessID:          "proc-1",
		ProcessType:        model.PreEntrega,
		Project:            "Edificio A",
		Number:             "101",
		SubmittedAt:        submitted,
		PDFURL:             "https://docs.example/acta.pdf",
		SignatureChecksums: []string{"sig-client", "sig-rep"},
	}
	if err := db.SaveHandover(ctx, h); err != nil {
		t.Fatalf("SaveHandover() error = %v", err)
	}
	noPDF := model.Handover{ID: "h-2", UnitID: "u2", ProcessType: model.EntregaFinal, SubmittedAt: submitted.Add(time.Hour)}
	if err := db.SaveHandover(ctx, noPDF); err != nil {
		t.Fatalf("SaveHandover() error = %v", err)
	}

	t.Run("find round trips signatures in order", func(t *testing.T) {
		got, err := db.FindHandover(ctx, "h-1")
		if err != nil || got == nil {
			t.Fatalf("FindHandover() = %v, %v", got, err)
		}
		if got.ProcessType != model.PreEntrega || !got.SubmittedAt.Equal(submitted) {
			t.Errorf("handover = %+v", got)
		}
		if len(got.SignatureChecksums) != 2 || got.SignatureChecksums[0] != "sig-client" {
			t.Errorf("SignatureChecksums = %v", got.SignatureChecksums)
		}
	})

	t.Run("unknown handover", func(t *testing.T) {
		got, err := db.FindHandover(ctx, "nope")
		if err != nil || got != nil {
			t.Errorf("FindHandover(nope) = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		list, err := db.ListHandovers(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 2 || list[0].ID != "h-2" {
			t.Errorf("ListHandovers() ids = %v", ids(list))
		}
	})

	t.Run("pending actas", func(t *testing.T) {
		pending, err := db.PendingActas(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 1 || pending[0].ID != "h-1" {
			t.Fatalf("PendingActas() ids = %v, want [h-1]", ids(pending))
		}

		if err := db.EnsureContent(ctx, "pdf-1", "acta", 1000); err != nil {
			t.Fatal(err)
		}
		if err := db.SetActaChecksum(ctx, "h-1", "pdf-1"); err != nil {
			t.Fatalf("SetActaChecksum() error = %v", err)
		}
		pending, err = db.PendingActas(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 0 {
			t.Errorf("PendingActas() after archive = %v", ids(pending))
		}
	})

	t.Run("unknown signature content is rejected", func(t *testing.T) {
		bad := model.Handover{ID: "h-3", UnitID: "u3", ProcessType: model.PreEntrega, SubmittedAt: submitted, SignatureChecksums: []string{"missing"}}
		if err := db.SaveHandover(ctx, bad); err == nil {
			t.Error("SaveHandover() expected foreign key error")
		}
		if got, _ := db.FindHandover(ctx, "h-3"); got != nil {
			t.Error("failed SaveHandover left a row behind")
		}
	})

	t.Run("set checksum on unknown handover", func(t *testing.T) {
		if err := db.SetActaChecksum(ctx, "nope", "pdf-1"); err == nil {
			t.Error("SetActaChecksum() expected error")
		}
	})
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.RegisterDevice(ctx, "dev-a"); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	copyDB, err := NewSQLiteDatabase(dest)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer copyDB.Close()

	devices, err := copyDB.Devices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 || devices[0].ID != "dev-a" {
		t.Errorf("backup devices = %+v", devices)
	}
}

func ids(list []model.Handover) []string {
	out := make([]string, len(list))
	for i, h := range list {
		out[i] = h.ID
	}
	return out
}
