// Package gitcgi is the CGI Bridge (§4.C): it spawns the external
// git-http-backend binary per request, feeds the incoming request body
// to its stdin, and splits its stdout into a parsed CGI header block
// followed by a live body stream. The body stream and the process
// completion handle are returned separately (§3 CgiResponse) so the
// HTTP layer can forward response bytes to the client while the
// Post-Push Orchestrator independently awaits process exit.
package gitcgi

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/riley-cms/riley-cms/internal/apperror"
	"github.com/riley-cms/riley-cms/internal/procutil"
)

const maxHeaderBlockBytes = 16 * 1024
const maxStderrBytes = 64 * 1024

// Config controls the bridge's behavior; it is the request-plane subset
// of the [git] config section (§6).
type Config struct {
	BackendPath string
	MaxBodySize int64
	CGITimeout  time.Duration
}

// Header is a CGI response header map with lowercased keys, matching
// §4.C's header-parsing rule literally (Go's http.Header canonicalizes
// keys on Add, which this type deliberately avoids).
type Header map[string][]string

func (h Header) add(key, value string) {
	key = strings.ToLower(strings.TrimSpace(key))
	h[key] = append(h[key], value)
}

// Get returns the first value for key, case-insensitively.
func (h Header) Get(key string) string {
	v := h[strings.ToLower(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Request is the inbound Git-Smart-HTTP request translated into CGI
// terms.
type Request struct {
	RepoPath      string
	PathInfo      string // path suffix after "/git/", prefixed with "/"
	Method        string
	QueryString   string
	ContentType   string
	ContentLength string
	Body          io.Reader
}

// Response is the CGI Bridge's output: a parsed status/header pair, a
// live body stream, and a completion handle (§3 CgiResponse).
type Response struct {
	StatusCode int
	Header     Header
	Body       io.ReadCloser
	Completion *Completion
}

// Bridge spawns and stream-talks to git-http-backend.
type Bridge struct {
	cfg    Config
	logger *log.Logger
}

// NewBridge constructs a Bridge. A nil logger defaults to a
// "[riley-cms:git-cgi] "-prefixed stdlib logger, matching this
// module's per-subsystem logging convention.
func NewBridge(cfg Config, logger *log.Logger) *Bridge {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 100 * 1024 * 1024
	}
	if cfg.CGITimeout <= 0 {
		cfg.CGITimeout = 300 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[riley-cms:git-cgi] ", log.LstdFlags)
	}
	return &Bridge{cfg: cfg, logger: logger}
}

// Spawn validates the repo, locates the backend binary, launches it,
// and blocks until the CGI header block has been parsed (or an error
// occurs). The returned Response.Body streams the remaining stdout
// bytes unbuffered; Response.Completion must eventually be awaited by
// the caller (directly, or via the Post-Push Orchestrator) to reap the
// child.
func (b *Bridge) Spawn(req *Request) (*Response, error) {
	if err := ValidateRepoPath(req.RepoPath); err != nil {
		return nil, err
	}
	backend, err := LocateBackend(b.cfg.BackendPath)
	if err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	env := []string{
		"GIT_PROJECT_ROOT=" + req.RepoPath,
		"GIT_HTTP_EXPORT_ALL=1",
		"PATH_INFO=" + req.PathInfo,
		"REQUEST_METHOD=" + req.Method,
	}
	if req.QueryString != "" {
		env = append(env, "QUERY_STRING="+req.QueryString)
	}
	if req.ContentType != "" {
		env = append(env, "CONTENT_TYPE="+req.ContentType)
	}
	if req.ContentLength != "" {
		env = append(env, "CONTENT_LENGTH="+req.ContentLength)
	}

	cmd := exec.Command(backend)
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindGit, "open stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindGit, "open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindGit, "open stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, apperror.Wrap(apperror.KindGit, "start git-http-backend", err)
	}
	b.logger.Printf("request=%s spawned git-http-backend pid=%d path_info=%s", id, cmd.Process.Pid, req.PathInfo)

	body := req.Body
	if body == nil {
		body = bytes.NewReader(nil)
	}
	f := startFeeder(body, stdin, b.cfg.MaxBodySize)
	sc := startStderrCollector(stderr)
	comp := newCompletion(id, cmd, f, sc, b.logger)

	bufReader := bufio.NewReader(stdout)
	status, header, headerErr := parseCGIHeaders(bufReader, f)
	if headerErr != nil {
		return nil, headerErr
	}

	return &Response{
		StatusCode: status,
		Header:     header,
		Body:       &bodyStream{r: bufReader, closer: stdout},
		Completion: comp,
	}, nil
}

// bodyStream adapts a bufio.Reader over the CGI child's stdout pipe
// (post-header) to io.ReadCloser; Close closes the underlying pipe,
// which is how client disconnection is propagated to the child per §5.
type bodyStream struct {
	r      *bufio.Reader
	closer io.Closer
}

func (s *bodyStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *bodyStream) Close() error                { return s.closer.Close() }

// parseCGIHeaders reads the CGI header block (lines terminated by LF or
// CRLF, ending at the first empty line), capped at 16 KiB. "Status: N"
// sets the response status; all other "K: V" lines become lowercased
// response headers. It aborts early with the feeder's error if the
// stdin-feeder has already failed with body-too-large, per §4.C.
func parseCGIHeaders(r *bufio.Reader, f *feeder) (int, Header, error) {
	status := 200
	header := Header{}
	var total int

	for {
		if done, ferr := f.peek(); done && ferr != nil {
			return 0, nil, ferr
		}

		line, err := r.ReadString('\n')
		total += len(line)
		if total > maxHeaderBlockBytes {
			return 0, nil, apperror.New(apperror.KindGit, "CGI header block exceeds 16KiB limit")
		}
		if err != nil {
			return 0, nil, apperror.Wrap(apperror.KindGit, "reading CGI header block", err)
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}

		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if strings.EqualFold(key, "status") {
			fields := strings.Fields(value)
			if len(fields) > 0 {
				if code, convErr := strconv.Atoi(fields[0]); convErr == nil {
					status = code
				}
			}
			continue
		}
		header.add(key, value)
	}

	return status, header, nil
}

// errBodyTooLarge is returned by limitWriter once the configured
// max-body-size has been exceeded.
var errBodyTooLarge = apperror.New(apperror.KindPayloadTooLarge, "request body exceeds configured max_body_size")

// limitWriter enforces a running byte-count cap on writes to the CGI
// child's stdin (§4.C step 1), stopping at the first write that would
// exceed the limit.
type limitWriter struct {
	w     io.Writer
	limit int64
	n     int64
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	if lw.n >= lw.limit {
		return 0, errBodyTooLarge
	}
	remaining := lw.limit - lw.n
	toWrite := p
	truncated := false
	if int64(len(p)) > remaining {
		toWrite = p[:remaining]
		truncated = true
	}
	n, err := lw.w.Write(toWrite)
	lw.n += int64(n)
	if err != nil {
		return n, err
	}
	if truncated {
		return n, errBodyTooLarge
	}
	return n, nil
}

// feeder is the stdin-feeder task (§3 Lifecycle & ownership): it copies
// the request body into the child's stdin, enforcing max_body_size, and
// treats the child closing stdin early (broken pipe) as success rather
// than an error.
type feeder struct {
	done chan struct{}
	err  error
}

func startFeeder(body io.Reader, stdin io.WriteCloser, limit int64) *feeder {
	f := &feeder{done: make(chan struct{})}
	go func() {
		defer stdin.Close()
		lw := &limitWriter{w: stdin, limit: limit}
		_, err := io.Copy(lw, body)
		if err != nil && isBrokenPipe(err) {
			err = nil
		}
		f.err = err
		close(f.done)
	}()
	return f
}

// peek is a non-blocking check of whether the feeder has finished.
func (f *feeder) peek() (done bool, err error) {
	select {
	case <-f.done:
		return true, f.err
	default:
		return false, nil
	}
}

func (f *feeder) wait() error {
	<-f.done
	return f.err
}

func isBrokenPipe(err error) bool {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	return strings.Contains(err.Error(), "broken pipe") || strings.Contains(err.Error(), "file already closed")
}

// stderrCollector buffers up to 64 KiB of the child's stderr (§4.C),
// draining the rest so the child never blocks writing to a full pipe.
type stderrCollector struct {
	done chan struct{}
	data []byte
}

func startStderrCollector(r io.Reader) *stderrCollector {
	sc := &stderrCollector{done: make(chan struct{})}
	go func() {
		defer close(sc.done)
		limited := io.LimitReader(r, maxStderrBytes)
		data, _ := io.ReadAll(limited)
		sc.data = data
		_, _ = io.Copy(io.Discard, r)
	}()
	return sc
}

func (sc *stderrCollector) wait() { <-sc.done }

// Completion is the join handle for the stdin-feeder / process /
// stderr-collector triple (§3 Lifecycle & ownership).
type Completion struct {
	id       string
	cmd      *exec.Cmd
	feeder   *feeder
	stderr   *stderrCollector
	waitDone chan error
	killed   atomic.Bool
	logger   *log.Logger
}

func newCompletion(id string, cmd *exec.Cmd, f *feeder, sc *stderrCollector, logger *log.Logger) *Completion {
	c := &Completion{id: id, cmd: cmd, feeder: f, stderr: sc, waitDone: make(chan error, 1), logger: logger}
	go func() {
		c.waitDone <- cmd.Wait()
	}()
	return c
}

// Killed reports whether the completion timeout forced a kill.
func (c *Completion) Killed() bool { return c.killed.Load() }

// Wait joins the stdin-feeder (propagating body-too-large/stream
// errors), waits on the child with the given timeout (killing on
// expiry), then joins the stderr collector and logs it at warn level if
// non-empty (§4.C Completion).
func (c *Completion) Wait(timeout time.Duration) error {
	feederErr := c.feeder.wait()

	var waitErr error
	select {
	case waitErr = <-c.waitDone:
	case <-time.After(timeout):
		c.killed.Store(true)
		if c.cmd.Process != nil && procutil.PIDAlive(c.cmd.Process.Pid) {
			_ = c.cmd.Process.Kill()
		}
		waitErr = <-c.waitDone
		waitErr = apperror.Wrap(apperror.KindGit, "git-http-backend exceeded completion timeout and was killed", waitErr)
	}

	c.stderr.wait()
	if len(c.stderr.data) > 0 {
		c.logger.Printf("request=%s git-http-backend stderr: %s", c.id, string(c.stderr.data))
	}

	if feederErr != nil {
		return feederErr
	}
	return waitErr
}

// ExitCode reports the child's exit code after Wait has returned, or -1
// if it was killed or never started.
func ExitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}
