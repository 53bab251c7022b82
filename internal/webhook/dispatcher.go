// Package webhook is the Webhook Dispatcher (§4.E): on a successful
// content-index reload, it fires one detached POST per configured URL,
// pinning the resolved IP to close the DNS-rebinding TOCTOU window and
// signing the body with HMAC-SHA256 when a secret is configured.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"

	"github.com/riley-cms/riley-cms/internal/apperror"
	"github.com/riley-cms/riley-cms/internal/ipsafety"
)

// body is the fixed literal payload every delivery sends (§4.E step 5).
const body = "{}"

const perAttemptTimeout = 10 * time.Second
const maxAttempts = 3

// Dispatcher fires webhook deliveries for a fixed set of target URLs.
type Dispatcher struct {
	urls   []string
	secret func() (string, error)
	logger *log.Logger
}

// New constructs a Dispatcher. secret resolves the signing secret lazily
// (via config.TokenSource.Resolve): it is called once per delivery, not
// once at construction.
func New(urls []string, secret func() (string, error), logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[riley-cms:webhook] ", log.LstdFlags)
	}
	return &Dispatcher{urls: urls, secret: secret, logger: logger}
}

// Fire spawns one detached delivery task per configured URL and returns
// immediately; it does not wait for deliveries to complete (§4.H: the
// Post-Push Orchestrator calls Fire after reload and moves on).
func (d *Dispatcher) Fire() {
	for _, rawURL := range d.urls {
		u := rawURL
		id := ulid.Make().String()
		go d.deliver(id, u)
	}
}

func (d *Dispatcher) deliver(id, rawURL string) {
	signed, sig, err := d.sign()
	if err != nil {
		d.logger.Printf("delivery=%s url=%s aborted: %v", id, rawURL, err)
		return
	}

	client, host, err := pinnedClient(rawURL)
	if err != nil {
		d.logger.Printf("delivery=%s url=%s aborted: %v", id, rawURL, err)
		return
	}

	d.deliverWithClient(id, rawURL, host, client, signed, sig)
}

// deliverWithClient runs the attempt/retry/backoff sequence (§4.E step
// 6) against an already-constructed client. Split out from deliver so
// tests can exercise the retry semantics against an httptest server
// without going through DNS pinning.
func (d *Dispatcher) deliverWithClient(id, rawURL, host string, client *http.Client, signed, sig string) {
	b := &backoff.Backoff{Min: 1 * time.Second, Max: 2 * time.Second, Factor: 2, Jitter: false}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := d.attempt(client, id, rawURL, signed, sig)
		if err == nil && status >= 200 && status < 300 {
			d.logger.Printf("delivery=%s url=%s host=%s attempt=%d status=%d ok", id, rawURL, host, attempt, status)
			return
		}
		if err == nil && status >= 400 && status < 500 {
			d.logger.Printf("delivery=%s url=%s host=%s attempt=%d status=%d terminal (4xx)", id, rawURL, host, attempt, status)
			return
		}

		if attempt == maxAttempts {
			if err != nil {
				d.logger.Printf("delivery=%s url=%s host=%s attempt=%d failed permanently: %v", id, rawURL, host, attempt, err)
			} else {
				d.logger.Printf("delivery=%s url=%s host=%s attempt=%d failed permanently: status=%d", id, rawURL, host, attempt, status)
			}
			return
		}

		sleep := b.Duration()
		d.logger.Printf("delivery=%s url=%s host=%s attempt=%d retrying in %s (status=%d err=%v)", id, rawURL, host, attempt, sleep, status, err)
		time.Sleep(sleep)
	}
}

func (d *Dispatcher) attempt(client *http.Client, id, rawURL, signedBody, sig string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), perAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(signedBody))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Riley-Cms-Delivery-Id", deliveryIdempotencyKey(rawURL, id))
	if sig != "" {
		req.Header.Set("X-Riley-Cms-Signature", "sha256="+sig)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

// deliveryIdempotencyKey derives a receiver-facing dedup key from the
// target URL and the delivery's correlation id. blake3 is deliberately
// not cryptographic here — authenticity is already covered by the
// HMAC-SHA256 signature; this key only helps a receiver collapse
// retried attempts of the same delivery.
func deliveryIdempotencyKey(rawURL, id string) string {
	sum := blake3.Sum256([]byte(rawURL + "|" + id))
	return hex.EncodeToString(sum[:])
}

// sign computes the HMAC-SHA256 signature of the fixed body when a
// secret is configured. secret being nil means no secret source was
// configured at all, which sends unsigned. But once a source is
// configured, it resolving to "" is a configuration error, never a
// silent unsigned send (§4.E step 5) — Dispatcher.New callers thread
// config.TokenSource.IsSet() into whether secret is nil.
func (d *Dispatcher) sign() (string, string, error) {
	if d.secret == nil {
		return body, "", nil
	}
	secret, err := d.secret()
	if err != nil {
		return "", "", err
	}
	if secret == "" {
		return "", "", apperror.New(apperror.KindConfig, "webhook secret is configured but resolved empty")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return body, hex.EncodeToString(mac.Sum(nil)), nil
}

// pinnedClient builds an http.Client whose dialer is pinned to a single
// resolved, safety-checked IP for rawURL's host (§4.E steps 1-4): DNS is
// resolved exactly once here, so a subsequent rebind cannot redirect the
// actual TCP connect to an internal address. Redirects are disabled for
// the same reason — a 302 response could point at localhost.
func pinnedClient(rawURL string) (*http.Client, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", apperror.Wrap(apperror.KindBadRequest, "invalid webhook URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", apperror.New(apperror.KindBadRequest, "webhook URL must be http or https: "+rawURL)
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(context.Background(), host)
	if err != nil {
		return nil, host, apperror.Wrap(apperror.KindIO, "resolve webhook host", err)
	}

	var pinned net.IP
	for _, a := range addrs {
		if ipsafety.Safe(a.IP) {
			pinned = a.IP
			break
		}
	}
	if pinned == nil {
		return nil, host, apperror.New(apperror.KindBadRequest, "webhook host "+host+" has no safe resolved address")
	}

	pinnedAddr := net.JoinHostPort(pinned.String(), port)
	dialer := &net.Dialer{Timeout: perAttemptTimeout}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, pinnedAddr)
		},
		TLSClientConfig: &tls.Config{ServerName: host},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   perAttemptTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return fmt.Errorf("webhook delivery does not follow redirects (attempted %s)", req.URL)
		},
	}, host, nil
}
