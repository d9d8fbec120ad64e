package testutil

import (
	"context"
	"sync"

	"acta-go/internal/inspection"
	"acta-go/internal/model"
	"acta-go/internal/normalize"
)

// FakeBackend is a scriptable in-memory inspection.Backend that records
// every call it receives.
type FakeBackend struct {
	mu sync.Mutex

	Inspector      model.Inspector
	LoginErr       error
	Rows           []normalize.Row
	AssignmentsErr error
	ProcessID      string
	StartErr       error
	Completion     inspection.Completion
	CompleteErr    error
	Acta           inspection.ActaStatus
	ActaErr        error
	HealthErr      error

	// OnAssignments runs before Assignments returns, e.g. to change the
	// session mid-fetch.
	OnAssignments func()

	Calls       []string
	Logins      []string
	Starts      []inspection.StartRequest
	Submissions []inspection.Submission
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{ProcessID: "proc-1"}
}

func (f *FakeBackend) call(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, name)
}

// CallCount returns how many times the named action was called.
func (f *FakeBackend) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// SetRows replaces the scheduling rows served by Assignments.
func (f *FakeBackend) SetRows(rows []normalize.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rows = rows
}

func (f *FakeBackend) Login(_ context.Context, credential string) (model.Inspector, error) {
	f.call("login")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Logins = append(f.Logins, credential)
	if f.LoginErr != nil {
		return model.Inspector{}, f.LoginErr
	}
	return f.Inspector, nil
}

func (f *FakeBackend) Assignments(_ context.Context, _ model.Inspector) ([]normalize.Row, error) {
	f.call("assignments")
	if f.OnAssignments != nil {
		f.OnAssignments()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AssignmentsErr != nil {
		return nil, f.AssignmentsErr
	}
	return append([]normalize.Row(nil), f.Rows...), nil
}

func (f *FakeBackend) StartProcess(_ context.Context, req inspection.StartRequest) (string, error) {
	f.call("startProcess")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Starts = append(f.Starts, req)
	if f.StartErr != nil {
		return "", f.StartErr
	}
	return f.ProcessID, nil
}

func (f *FakeBackend) CompleteProcess(_ context.Context, sub inspection.Submission) (inspection.Completion, error) {
	f.call("completeProcess")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Submissions = append(f.Submissions, sub)
	if f.CompleteErr != nil {
		return inspection.Completion{}, f.CompleteErr
	}
	return f.Completion, nil
}

func (f *FakeBackend) ActaStatus(_ context.Context, _ model.Unit) (inspection.ActaStatus, error) {
	f.call("getActaStatus")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Acta, f.ActaErr
}

func (f *FakeBackend) Health(_ context.Context) error {
	f.call("health")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.HealthErr
}

var _ inspection.Backend = (*FakeBackend)(nil)
