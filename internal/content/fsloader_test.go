package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFSLoaderLoadsPostsAndSeries(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "hello", "config.toml"), `title = "Hello"
preview_text = "a greeting"
`)
	writeFile(t, filepath.Join(root, "hello", "content.mdx"), "# Hello\n")

	writeFile(t, filepath.Join(root, "myseries", "series.toml"), `title = "My Series"
`)
	writeFile(t, filepath.Join(root, "myseries", "part-one", "config.toml"), `title = "Part One"
preview_text = "first"
order = 1
`)
	writeFile(t, filepath.Join(root, "myseries", "part-one", "content.mdx"), "part one body\n")

	loader := NewFSLoader(root, nil)
	snap, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := snap.Posts["hello"]; !ok {
		t.Fatal("expected standalone post 'hello'")
	}
	series, ok := snap.Series["myseries"]
	if !ok {
		t.Fatal("expected series 'myseries'")
	}
	if len(series.Members) != 1 || series.Members[0] != "part-one" {
		t.Fatalf("series members = %v, want [part-one]", series.Members)
	}
	p, ok := snap.Posts["part-one"]
	if !ok {
		t.Fatal("expected member post 'part-one'")
	}
	if p.SeriesSlug != "myseries" {
		t.Errorf("member SeriesSlug = %q, want myseries", p.SeriesSlug)
	}
	if p.Order == nil || *p.Order != 1 {
		t.Errorf("member Order = %v, want 1", p.Order)
	}
}

func TestFSLoaderSkipsMalformedPost(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken", "config.toml"), `subtitle = "no title"
`)
	writeFile(t, filepath.Join(root, "broken", "content.mdx"), "body\n")

	writeFile(t, filepath.Join(root, "ok", "config.toml"), `title = "OK"
preview_text = "fine"
`)
	writeFile(t, filepath.Join(root, "ok", "content.mdx"), "body\n")

	loader := NewFSLoader(root, nil)
	snap, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := snap.Posts["broken"]; ok {
		t.Error("malformed post should have been skipped, not loaded")
	}
	if _, ok := snap.Posts["ok"]; !ok {
		t.Error("well-formed sibling post should still load")
	}
}
