package index

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cartonpkg/go-carton/manifest"
	"github.com/cartonpkg/go-carton/version"
)

const logRecords = `{"name":"log","vers":"0.4.8","deps":[],"features":{}}
{"name":"log","vers":"0.4.11","yanked":true,"deps":[],"features":{}}
{"name":"log","vers":"0.3.9","deps":[{"name":"cfg-if","req":"1.0","kind":"normal"}],"features":{"std":[]},"links":"",
"cksum":"sha256:abc","min_toolchain":"1.60.0"}
`

func TestParseRecords(t *testing.T) {
	summaries, err := parseRecords("log", []byte(logRecords))
	if err != nil {
		t.Fatalf("parseRecords: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("got %d summaries, want 3", len(summaries))
	}

	// Ascending version order regardless of record order.
	want := []string{"0.3.9", "0.4.8", "0.4.11"}
	for i, w := range want {
		if summaries[i].Version.String() != w {
			t.Errorf("summaries[%d] = %s, want %s", i, summaries[i].Version, w)
		}
	}

	oldest := summaries[0]
	if oldest.Checksum != "sha256:abc" {
		t.Errorf("checksum = %q, want sha256:abc", oldest.Checksum)
	}
	if oldest.MinToolchain.String() != "1.60.0" {
		t.Errorf("min toolchain = %s, want 1.60.0", oldest.MinToolchain)
	}
	if len(oldest.Dependencies) != 1 || oldest.Dependencies[0].Name != "cfg-if" {
		t.Errorf("dependencies = %+v, want one cfg-if edge", oldest.Dependencies)
	}
	if oldest.Dependencies[0].Kind != manifest.KindNormal {
		t.Errorf("dependency kind = %v, want normal", oldest.Dependencies[0].Kind)
	}
	if !summaries[2].Yanked {
		t.Error("0.4.11 should be yanked")
	}
}

func TestParseRecordsMalformed(t *testing.T) {
	tests := []string{
		`{"name":"a","vers":"not-a-version","deps":[]}`,
		`{"name":"a","vers":"1.0.0","deps":[{"name":"b","req":"banana"}]}`,
		`{"name":"a","vers":"1.0.0","deps":[{"name":"b","req":"1.0","kind":"weird"}]}`,
		`not json at all`,
	}
	for _, input := range tests {
		if _, err := parseRecords("a", []byte(input)); err == nil {
			t.Errorf("parseRecords(%q) succeeded, want error", input)
		}
	}
}

func TestIndexPath(t *testing.T) {
	tests := []struct{ name, want string }{
		{"a", "1/a"},
		{"ab", "2/ab"},
		{"abc", "3/a/abc"},
		{"serde", "se/rd/serde"},
		{"tokio-util", "to/ki/tokio-util"},
	}
	for _, tt := range tests {
		if got := indexPath(tt.name); got != tt.want {
			t.Errorf("indexPath(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMemoryIndex(t *testing.T) {
	m := NewMemory()
	m.Add(&Summary{Name: "log", Version: version.MustParse("0.4.11")})
	m.Add(&Summary{Name: "log", Version: version.MustParse("0.3.9")})

	summaries, err := m.Versions(context.Background(), "log")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(summaries) != 2 || summaries[0].Version.String() != "0.3.9" {
		t.Errorf("got %+v, want ascending order starting at 0.3.9", summaries)
	}

	if _, err := m.Versions(context.Background(), "missing"); !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("missing package error = %v, want ErrPackageNotFound", err)
	}
}

func TestLocalIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "3", "l")
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "log"), []byte(logRecords), 0o644); err != nil {
		t.Fatal(err)
	}

	local, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	summaries, err := local.Versions(context.Background(), "log")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(summaries) != 3 {
		t.Errorf("got %d summaries, want 3", len(summaries))
	}

	if _, err := local.Versions(context.Background(), "missing"); !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("missing package error = %v, want ErrPackageNotFound", err)
	}
}

func TestClient(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/3/l/log":
			hits++
			_, _ = w.Write([]byte(logRecords))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)

	summaries, err := client.Versions(context.Background(), "log")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(summaries) != 3 {
		t.Errorf("got %d summaries, want 3", len(summaries))
	}

	// Second query is served from cache.
	if _, err := client.Versions(context.Background(), "log"); err != nil {
		t.Fatalf("cached Versions: %v", err)
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}

	if _, err := client.Versions(context.Background(), "missing"); !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("missing package error = %v, want ErrPackageNotFound", err)
	}
}

func TestCachedOffline(t *testing.T) {
	m := NewMemory()
	m.Add(&Summary{Name: "log", Version: version.MustParse("0.4.8")})

	cached := NewCached(m, false)
	if _, err := cached.Versions(context.Background(), "log"); err != nil {
		t.Fatalf("warm query: %v", err)
	}

	offline := NewCached(m, true)
	offline.Warm("log", []*Summary{{Name: "log", Version: version.MustParse("0.4.8")}})

	if _, err := offline.Versions(context.Background(), "log"); err != nil {
		t.Fatalf("offline cached query: %v", err)
	}

	_, err := offline.Versions(context.Background(), "rand")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || !fetchErr.Network {
		t.Errorf("offline miss error = %v, want network FetchError", err)
	}
}

func TestForOffline(t *testing.T) {
	m := NewMemory()
	m.Add(&Summary{Name: "log", Version: version.MustParse("0.4.8")})

	t.Run("network-free index passes through", func(t *testing.T) {
		if idx := ForOffline(m); idx != Index(m) {
			t.Errorf("ForOffline(Memory) = %T, want the index itself", idx)
		}
		if _, ok := ForOffline(NewCached(m, false)).(*Cached); !ok {
			t.Error("ForOffline(Cached over Memory) should pass the cache through")
		}
	})

	t.Run("warmed cache keeps answering", func(t *testing.T) {
		cached := NewCached(m, false)
		if _, err := cached.Versions(context.Background(), "log"); err != nil {
			t.Fatalf("warm query: %v", err)
		}
		cached.inner = nil // any further inner lookup would panic

		idx := ForOffline(cached)
		if _, err := idx.Versions(context.Background(), "log"); err != nil {
			t.Errorf("cached name unavailable offline: %v", err)
		}
		_, err := idx.Versions(context.Background(), "rand")
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.Network {
			t.Errorf("offline miss error = %v, want network FetchError", err)
		}
	})
}

func TestPrefetch(t *testing.T) {
	m := NewMemory()
	m.Add(&Summary{Name: "a", Version: version.MustParse("1.0.0")})
	m.Add(&Summary{Name: "b", Version: version.MustParse("1.0.0")})

	cached := NewCached(m, false)
	if err := Prefetch(context.Background(), cached, []string{"a", "b", "missing"}); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}

	// After prefetch the cache answers offline.
	cached.offline = true
	if _, err := cached.Versions(context.Background(), "a"); err != nil {
		t.Errorf("prefetched name unavailable offline: %v", err)
	}
}
