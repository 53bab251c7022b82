package webhook

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func literalSecret(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

func TestSignWithSecret(t *testing.T) {
	d := New(nil, literalSecret("topsecret"), nil)
	payload, sig, err := d.sign()
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if payload != "{}" {
		t.Errorf("payload = %q, want {}", payload)
	}
	if sig == "" {
		t.Error("expected non-empty signature when secret is configured")
	}
}

func TestSignWithoutSecretConfigured(t *testing.T) {
	d := New(nil, nil, nil)
	_, sig, err := d.sign()
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig != "" {
		t.Error("expected no signature when no secret source is configured")
	}
}

func TestSignConfiguredButResolvesEmptyIsAnError(t *testing.T) {
	d := New(nil, literalSecret(""), nil)
	_, _, err := d.sign()
	if err == nil {
		t.Fatal("expected error when a configured secret source resolves to empty")
	}
}

func TestSignResolveError(t *testing.T) {
	d := New(nil, func() (string, error) { return "", errResolve }, nil)
	_, _, err := d.sign()
	if err == nil {
		t.Fatal("expected error propagated from secret resolver")
	}
}

var errResolve = &resolveErr{}

type resolveErr struct{}

func (e *resolveErr) Error() string { return "env var not set" }

func TestDeliverWithClientSucceedsOnFirstAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if got := r.Header.Get("X-Riley-Cms-Signature"); got == "" {
			t.Error("expected signature header")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New([]string{srv.URL}, literalSecret("s3cr3t"), nil)
	payload, sig, err := d.sign()
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	d.deliverWithClient("test-1", srv.URL, "test-host", srv.Client(), payload, sig)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestDeliverWithClientStopsOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := New([]string{srv.URL}, nil, nil)
	d.deliverWithClient("test-2", srv.URL, "test-host", srv.Client(), body, "")

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not retry)", got)
	}
}

func TestDeliverWithClientRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New([]string{srv.URL}, nil, nil)
	start := time.Now()
	d.deliverWithClient("test-3", srv.URL, "test-host", srv.Client(), body, "")
	elapsed := time.Since(start)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if elapsed < 1*time.Second {
		t.Errorf("expected at least 1s backoff before retry, took %s", elapsed)
	}
}

func TestDeliverWithClientGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New([]string{srv.URL}, nil, nil)
	d.deliverWithClient("test-4", srv.URL, "test-host", srv.Client(), body, "")

	if got := atomic.LoadInt32(&calls); got != maxAttempts {
		t.Errorf("calls = %d, want %d", got, maxAttempts)
	}
}

func TestPinnedClientRejectsBadScheme(t *testing.T) {
	_, _, err := pinnedClient("ftp://example.com/hook")
	if err == nil {
		t.Fatal("expected error for non-http(s) scheme")
	}
}

func TestPinnedClientRejectsUnsafeHost(t *testing.T) {
	_, _, err := pinnedClient("http://127.0.0.1:9999/hook")
	if err == nil {
		t.Fatal("expected error for loopback webhook target")
	}
}

func TestPinnedClientRejectsUnresolvableHost(t *testing.T) {
	_, _, err := pinnedClient("http://this-host-should-never-resolve.invalid/hook")
	if err == nil {
		t.Fatal("expected resolution error for .invalid TLD")
	}
}
