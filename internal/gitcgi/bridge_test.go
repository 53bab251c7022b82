package gitcgi

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeFakeBackend writes a shell script standing in for
// git-http-backend and returns its path. Using a shell script keeps the
// test hermetic (no real git-http-backend dependency) while exercising
// the exact CGI contract: env vars in, "Status:"/"K: V" header block,
// blank line, then body on stdout.
func writeFakeBackend(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake CGI backend fixture is a POSIX shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-git-http-backend")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake backend: %v", err)
	}
	return path
}

func writeFakeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	return dir
}

func TestSpawnParsesHeadersAndStreamsBody(t *testing.T) {
	backend := writeFakeBackend(t, `
echo "Content-Type: application/x-git-upload-pack-advertisement"
echo "Status: 200"
echo ""
echo -n "$PATH_INFO/$REQUEST_METHOD"
`)
	repo := writeFakeRepo(t)
	b := NewBridge(Config{BackendPath: backend, MaxBodySize: 1 << 20, CGITimeout: 5 * time.Second}, nil)

	resp, err := b.Spawn(&Request{
		RepoPath:    repo,
		PathInfo:    "/info/refs",
		Method:      "GET",
		QueryString: "service=git-upload-pack",
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("content-type"); got != "application/x-git-upload-pack-advertisement" {
		t.Errorf("content-type header = %q", got)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "/info/refs/GET" {
		t.Errorf("body = %q", body)
	}
	resp.Body.Close()

	if err := resp.Completion.Wait(5 * time.Second); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestSpawnFeedsStdinToChild(t *testing.T) {
	backend := writeFakeBackend(t, `
RECEIVED=$(cat)
echo "Status: 200"
echo ""
echo -n "len=${#RECEIVED}"
`)
	repo := writeFakeRepo(t)
	b := NewBridge(Config{BackendPath: backend, MaxBodySize: 1 << 20, CGITimeout: 5 * time.Second}, nil)

	payload := strings.Repeat("a", 128)
	resp, err := b.Spawn(&Request{
		RepoPath: repo,
		PathInfo: "/git-receive-pack",
		Method:   "POST",
		Body:     bytes.NewReader([]byte(payload)),
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err := resp.Completion.Wait(5 * time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if string(body) != "len=128" {
		t.Errorf("body = %q, want len=128", body)
	}
}

func TestSpawnBodyTooLargeAborts(t *testing.T) {
	backend := writeFakeBackend(t, `
cat > /dev/null
echo "Status: 200"
echo ""
echo -n "ok"
`)
	repo := writeFakeRepo(t)
	b := NewBridge(Config{BackendPath: backend, MaxBodySize: 16, CGITimeout: 5 * time.Second}, nil)

	_, err := b.Spawn(&Request{
		RepoPath: repo,
		PathInfo: "/git-receive-pack",
		Method:   "POST",
		Body:     bytes.NewReader(bytes.Repeat([]byte("x"), 4096)),
	})
	if err == nil {
		t.Fatal("expected body-too-large error")
	}
}

func TestSpawnMissingRepoRejected(t *testing.T) {
	backend := writeFakeBackend(t, `echo "Status: 200"
echo ""
`)
	b := NewBridge(Config{BackendPath: backend, MaxBodySize: 1 << 20, CGITimeout: time.Second}, nil)

	_, err := b.Spawn(&Request{RepoPath: filepath.Join(t.TempDir(), "nope"), PathInfo: "/info/refs", Method: "GET"})
	if err == nil {
		t.Fatal("expected error for nonexistent repo")
	}
}

func TestSpawnMissingBackendRejected(t *testing.T) {
	repo := writeFakeRepo(t)
	b := NewBridge(Config{BackendPath: filepath.Join(t.TempDir(), "does-not-exist"), MaxBodySize: 1 << 20, CGITimeout: time.Second}, nil)

	_, err := b.Spawn(&Request{RepoPath: repo, PathInfo: "/info/refs", Method: "GET"})
	if err == nil {
		t.Fatal("expected error for missing backend binary")
	}
}

func TestCompletionWaitKillsOnTimeout(t *testing.T) {
	backend := writeFakeBackend(t, `
echo "Status: 200"
echo ""
echo -n "ok"
sleep 30
`)
	repo := writeFakeRepo(t)
	b := NewBridge(Config{BackendPath: backend, MaxBodySize: 1 << 20, CGITimeout: 50 * time.Millisecond}, nil)

	resp, err := b.Spawn(&Request{RepoPath: repo, PathInfo: "/info/refs", Method: "GET"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	io.ReadFull(resp.Body, make([]byte, len("ok")))
	resp.Body.Close()

	err = resp.Completion.Wait(50 * time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !resp.Completion.Killed() {
		t.Error("expected Killed() to report true after timeout kill")
	}
}

func TestLocateBackendConfiguredMissing(t *testing.T) {
	_, err := LocateBackend(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("expected error for missing configured backend_path")
	}
}

func TestValidateRepoPathRejectsNonRepo(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateRepoPath(dir); err == nil {
		t.Fatal("expected error for directory with no .git or HEAD")
	}
}

func TestValidateRepoPathAcceptsBareRepo(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		t.Fatalf("write HEAD: %v", err)
	}
	if err := ValidateRepoPath(dir); err != nil {
		t.Errorf("ValidateRepoPath on bare repo: %v", err)
	}
}
