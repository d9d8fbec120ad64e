package api

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Call describes one attempt against the backend.
type Call struct {
	Endpoint string        `json:"endpoint"`
	Method   string        `json:"method"`
	Action   string        `json:"action"`
	Attempt  int           `json:"attempt"`
	Request  string        `json:"request"`
	Status   int           `json:"status"`
	Response string        `json:"response"`
	Error    string        `json:"error,omitempty"`
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
}

// CallSink persists calls beyond the in-memory last-call record.
type CallSink interface {
	RecordCall(ctx context.Context, call Call) error
}

// Diagnostics keeps the most recent call for operator inspection.
type Diagnostics struct {
	mu   sync.RWMutex
	last *Call
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

func (d *Diagnostics) Record(c Call) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = &c
}

// Last returns the latest recorded call, if any.
func (d *Diagnostics) Last() (Call, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return Call{}, false
	}
	return *d.last, true
}

const maxRecorded = 4096

// redact replaces every secret occurrence and truncates long payloads.
func redact(s string, secrets []string) string {
	for _, sec := range secrets {
		if sec != "" {
			s = strings.ReplaceAll(s, sec, "***")
		}
	}
	if len(s) > maxRecorded {
		s = s[:maxRecorded] + "..."
	}
	return s
}
