package testutil

import (
	"context"
	"sync"

	"acta-go/internal/fault"
)

// StubFetcher serves canned bodies by URL. Unknown URLs fail with a
// Server error, as a 404 from the document host would.
type StubFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func NewStubFetcher() *StubFetcher {
	return &StubFetcher{bodies: make(map[string]string), calls: make(map[string]int)}
}

// Serve registers body for url.
func (f *StubFetcher) Serve(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
}

// Calls returns how often url was fetched.
func (f *StubFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *StubFetcher) GetText(_ context.Context, url string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return "", fault.ServerError(404, "Not Found")
	}
	return body, nil
}
