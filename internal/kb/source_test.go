package kb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestNewSource(t *testing.T) {
	t.Parallel()
	if _, ok := NewSource("data", time.Second).(DirSource); !ok {
		t.Error("plain path should yield a DirSource")
	}
	for _, loc := range []string{"http://example.com/kb", "https://example.com/kb/"} {
		src, ok := NewSource(loc, time.Second).(*HTTPSource)
		if !ok {
			t.Fatalf("%s should yield an HTTPSource", loc)
		}
		if strings.HasSuffix(src.BaseURL, "/") {
			t.Errorf("base URL not trimmed: %s", src.BaseURL)
		}
	}
}

func TestDirSource_Fetch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "a.json"), []byte(`{"name":"a"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	src := DirSource{Dir: dir}
	data, err := src.Fetch(context.Background(), "sub/a.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"name":"a"}` {
		t.Errorf("got %s", data)
	}

	_, err = src.Fetch(context.Background(), "missing.json")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestDirSource_RejectsEscapingReferences(t *testing.T) {
	t.Parallel()
	src := DirSource{Dir: t.TempDir()}
	for _, ref := range []string{"../secret.json", "/etc/passwd", "a/../../b.json", ""} {
		if _, err := src.Fetch(context.Background(), ref); err == nil {
			t.Errorf("Fetch(%q) succeeded, want error", ref)
		}
	}
}

func TestDirSource_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (DirSource{Dir: t.TempDir()}).Fetch(ctx, "a.json"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDirSource_Zstd(t *testing.T) {
	t.Parallel()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := enc.EncodeAll([]byte(`{"categories":[{"name":"Z"}]}`), nil)
	enc.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "z.json.zst"), compressed, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json.zst"), []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(DirSource{Dir: dir}, "")
	doc, err := store.Resolve(context.Background(), "z.json.zst")
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Root.Children) != 1 || doc.Root.Children[0].Name != "Z" {
		t.Errorf("unexpected document: %+v", doc.Root)
	}
	if _, err := store.Resolve(context.Background(), "bad.json.zst"); err == nil {
		t.Error("expected error for corrupt zstd payload")
	}
}

func TestHTTPSource_Fetch(t *testing.T) {
	t.Parallel()

	var (
		mu                sync.Mutex
		gotPath, gotAgent string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.EscapedPath()
		gotAgent = r.Header.Get("User-Agent")
		mu.Unlock()
		switch r.URL.Path {
		case "/kb/categories.json":
			w.Write([]byte(scenarioRoot))
		case "/kb/sub dir/a b.json":
			w.Write([]byte(`{}`))
		default:
			http.Error(w, "no such document", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/kb/", 5*time.Second)
	ctx := context.Background()

	data, err := src.Fetch(ctx, "categories.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != scenarioRoot {
		t.Errorf("got %s", data)
	}
	mu.Lock()
	if !strings.HasPrefix(gotAgent, "faultbook/") {
		t.Errorf("User-Agent = %q", gotAgent)
	}
	mu.Unlock()

	if _, err := src.Fetch(ctx, "sub dir/a b.json"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	if gotPath != "/kb/sub%20dir/a%20b.json" {
		t.Errorf("escaped path = %q", gotPath)
	}
	mu.Unlock()

	_, err = src.Fetch(ctx, "missing.json")
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "no such document") {
		t.Errorf("expected 404 error with body excerpt, got %v", err)
	}
}

func TestHTTPSource_StoreIntegration(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.FileServer(http.Dir(writeTree(t, map[string]string{
		"categories.json": `{"categories":[{"name":"Remote","file":"remote.json"}]}`,
		"remote.json":     `{"categories":[{"name":"R1"}]}`,
	}))))
	defer srv.Close()

	store := NewStore(NewSource(srv.URL, 5*time.Second), "")
	ctx := context.Background()
	root, err := store.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(store.Children(ctx, root.Root.Children[0])); len(got) != 1 || got[0] != "R1" {
		t.Errorf("children = %v", got)
	}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
