package registrytest

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
)

// DefinitionServer is a fake remote contract definition source. Every path
// answers 200 unless marked missing.
type DefinitionServer struct {
	*httptest.Server

	mu       sync.Mutex
	missing  map[string]bool
	requests []string
}

// NewDefinitionServer starts a definition source closed at test cleanup
func NewDefinitionServer(t *testing.T) *DefinitionServer {
	t.Helper()

	s := &DefinitionServer{missing: make(map[string]bool)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Missing makes path, e.g. "/<commit>/app.wit", answer 404
func (s *DefinitionServer) Missing(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing[path] = true
}

// Requests returns the requested paths, sorted
func (s *DefinitionServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	requests := slices.Clone(s.requests)
	slices.Sort(requests)
	return requests
}

func (s *DefinitionServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.Path)
	missing := s.missing[r.URL.Path]
	s.mu.Unlock()

	if r.Method != http.MethodGet || missing {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte("package plugin:contract;\n"))
}
