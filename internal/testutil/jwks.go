package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// JWKSServer serves a JWKS document over plain HTTP and records what
// it was asked.
type JWKSServer struct {
	*httptest.Server

	hits atomic.Int32

	mu       sync.Mutex
	doc      []byte
	status   int
	tenants  []string
	delay    chan struct{}
	discover map[string]any
}

// ServeJWKS starts a server answering every GET on /token_keys (and any
// other path) with a document holding keys. The server is closed on test
// cleanup.
func ServeJWKS(t testing.TB, keys ...map[string]any) *JWKSServer {
	t.Helper()
	s := &JWKSServer{status: http.StatusOK}
	s.SetKeys(keys...)
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// JWKSURL returns the key endpoint.
func (s *JWKSServer) JWKSURL() string { return s.Server.URL + "/token_keys" }

// SetKeys replaces the served document.
func (s *JWKSServer) SetKeys(keys ...map[string]any) {
	if keys == nil {
		keys = []map[string]any{}
	}
	b, _ := json.Marshal(map[string]any{"keys": keys})
	s.SetDocument(b)
}

// SetDocument replaces the served body verbatim.
func (s *JWKSServer) SetDocument(doc []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
}

// SetStatus makes the server answer with status.
func (s *JWKSServer) SetStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Block makes requests wait until the returned function is called.
func (s *JWKSServer) Block() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.delay = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// ServeDiscovery answers /.well-known/openid-configuration with
// jwks_uri pointing at this server.
func (s *JWKSServer) ServeDiscovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discover = map[string]any{"issuer": s.Server.URL, "jwks_uri": s.JWKSURL()}
}

// Hits returns the number of JWKS requests served.
func (s *JWKSServer) Hits() int { return int(s.hits.Load()) }

// Tenants returns the x-app_tid header of each JWKS request.
func (s *JWKSServer) Tenants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tenants...)
}

func (s *JWKSServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delay, status, doc, discover := s.delay, s.status, s.doc, s.discover
	s.mu.Unlock()

	if r.URL.Path == "/.well-known/openid-configuration" && discover != nil {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(discover)
		return
	}

	s.hits.Add(1)
	s.mu.Lock()
	s.tenants = append(s.tenants, r.Header.Get("x-app_tid"))
	s.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-r.Context().Done():
			return
		}
	}
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}
