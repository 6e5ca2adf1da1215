package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// RequestInfo captures one registry API call for test assertions.
type RequestInfo struct {
	Method    string
	Path      string
	Form      map[string]string
	Timestamp time.Time
}

// MockRegistry is an httptest-backed stand-in for a Nacos-style service
// registry. It tracks the active instance set and logs every call so tests
// can assert on the registration lifecycle.
type MockRegistry struct {
	*httptest.Server

	mu         sync.Mutex
	instances  map[string]bool
	beats      map[string]int
	requestLog []RequestInfo

	failRegister   bool
	failHeartbeat  bool
	failDeregister bool
}

// MockRegistryBuilder configures a MockRegistry before it starts.
type MockRegistryBuilder struct {
	t        *testing.T
	registry *MockRegistry
}

// NewMockRegistry creates a mock registry builder.
func NewMockRegistry(t *testing.T) *MockRegistryBuilder {
	return &MockRegistryBuilder{
		t: t,
		registry: &MockRegistry{
			instances: make(map[string]bool),
			beats:     make(map[string]int),
		},
	}
}

// WithRegisterFailure makes registration calls answer 500.
func (b *MockRegistryBuilder) WithRegisterFailure() *MockRegistryBuilder {
	b.registry.failRegister = true
	return b
}

// WithHeartbeatFailure makes heartbeat calls answer 500.
func (b *MockRegistryBuilder) WithHeartbeatFailure() *MockRegistryBuilder {
	b.registry.failHeartbeat = true
	return b
}

// WithDeregisterFailure makes deregistration calls answer 500.
func (b *MockRegistryBuilder) WithDeregisterFailure() *MockRegistryBuilder {
	b.registry.failDeregister = true
	return b
}

// Build starts the mock registry. The server is shut down when the test
// finishes.
func (b *MockRegistryBuilder) Build() *MockRegistry {
	m := b.registry
	m.Server = httptest.NewServer(http.HandlerFunc(m.route))
	b.t.Cleanup(m.Close)
	return m
}

func (m *MockRegistry) route(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	m.logRequest(r)

	key := instanceKey(r)

	switch {
	case r.URL.Path == "/nacos/v1/ns/instance" && r.Method == http.MethodPost:
		if m.failRegister {
			http.Error(w, "registry unavailable", http.StatusInternalServerError)
			return
		}
		m.mu.Lock()
		m.instances[key] = true
		m.mu.Unlock()
		fmt.Fprint(w, "ok")

	case r.URL.Path == "/nacos/v1/ns/instance/beat" && r.Method == http.MethodPut:
		if m.failHeartbeat {
			http.Error(w, "registry unavailable", http.StatusInternalServerError)
			return
		}
		m.mu.Lock()
		m.beats[key]++
		m.mu.Unlock()
		fmt.Fprint(w, "ok")

	case r.URL.Path == "/nacos/v1/ns/instance" && r.Method == http.MethodDelete:
		if m.failDeregister {
			http.Error(w, "registry unavailable", http.StatusInternalServerError)
			return
		}
		m.mu.Lock()
		delete(m.instances, key)
		m.mu.Unlock()
		fmt.Fprint(w, "ok")

	default:
		http.NotFound(w, r)
	}
}

func (m *MockRegistry) logRequest(r *http.Request) {
	form := make(map[string]string, len(r.Form))
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = append(m.requestLog, RequestInfo{
		Method:    r.Method,
		Path:      r.URL.Path,
		Form:      form,
		Timestamp: time.Now(),
	})
}

func instanceKey(r *http.Request) string {
	return fmt.Sprintf("%s/%s@%s:%s",
		r.Form.Get("groupName"), r.Form.Get("serviceName"), r.Form.Get("ip"), r.Form.Get("port"))
}

// IsRegistered reports whether the instance identity is in the active set.
func (m *MockRegistry) IsRegistered(group, service, ip string, port int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instances[fmt.Sprintf("%s/%s@%s:%d", group, service, ip, port)]
}

// BeatCount returns how many heartbeats arrived for the instance identity.
func (m *MockRegistry) BeatCount(group, service, ip string, port int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beats[fmt.Sprintf("%s/%s@%s:%d", group, service, ip, port)]
}

// RequestCount returns the number of calls made to a specific path.
func (m *MockRegistry) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, req := range m.requestLog {
		if req.Path == path {
			count++
		}
	}
	return count
}

// LastRequest returns the most recent call to a specific path.
func (m *MockRegistry) LastRequest(path string) *RequestInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.requestLog) - 1; i >= 0; i-- {
		if m.requestLog[i].Path == path {
			req := m.requestLog[i]
			return &req
		}
	}
	return nil
}
