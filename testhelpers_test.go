package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/razvandimescu/bookpeek/internal/config"
	"github.com/razvandimescu/bookpeek/internal/content"
)

// testRepo is a content repository fixture below t.TempDir().
type testRepo struct {
	t    *testing.T
	repo content.Repository
}

// newTestRepo creates a repository with one book (NEA), its documents, a
// drawing 42.svg with sidecars, a photo 7.png and the metadata index.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	r := &testRepo{t: t, repo: content.New(t.TempDir())}

	r.write("toc/NEA.json", testBookNEA)
	r.write("contents/sections/ohm.md", testSectionOhm)
	r.write("contents/slides/ohm.md", testSlideOhm)
	r.write("contents/sections/kirchhoff.md", testKirchhoff)
	r.write("contents/sections/messen.md", testMessen)

	r.write("contents/drawings/42.svg", testSVG)
	r.write("contents/drawings/42.txt", testAltText)
	r.write("contents/drawings/42.tex", testTeX)
	r.write("contents/photos/7.png", "\x89PNG\r\n\x1a\n")

	r.write("contents/questions/metadata3b.json", testMetadata)
	return r
}

// write creates rel below the repository root with data.
func (r *testRepo) write(rel, data string) string {
	r.t.Helper()
	path := filepath.Join(r.repo.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		r.t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		r.t.Fatalf("failed to create test file %s: %v", path, err)
	}
	return path
}

func (r *testRepo) remove(rel string) {
	r.t.Helper()
	if err := os.Remove(filepath.Join(r.repo.Root, filepath.FromSlash(rel))); err != nil {
		r.t.Fatalf("failed to remove %s: %v", rel, err)
	}
}

// newTestServer builds a server for r. configure may adjust the settings
// before routes are registered.
func newTestServer(t *testing.T, r *testRepo, configure func(*config.Config)) (*server, http.Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.Root = r.repo.Root
	cfg.Browser = false
	if configure != nil {
		configure(cfg)
	}

	s, err := newServer(cfg)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	s.idleGrace = 20 * time.Millisecond
	t.Cleanup(s.close)
	return s, s.routes()
}

// doGet runs a GET request against h.
func doGet(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// waitFor polls cond until it holds or timeout passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// assertValidHTML checks for required HTML structure elements
func assertValidHTML(t *testing.T, html string) {
	t.Helper()
	required := []string{
		"<!DOCTYPE html>",
		"<html",
		"<head>",
		"<body>",
		"</body>",
		"</html>",
	}
	for _, tag := range required {
		if !strings.Contains(html, tag) {
			t.Errorf("HTML missing required tag: %s", tag)
		}
	}
}

// assertContains is a helper for checking string containment with clear error messages
func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected string to contain %q, got: %s", substr, s)
	}
}

// assertNotContains is a helper for checking string non-containment
func assertNotContains(t *testing.T, s, substr string) {
	t.Helper()
	if strings.Contains(s, substr) {
		t.Errorf("expected string NOT to contain %q, but it does", substr)
	}
}

// assertStatusCode checks HTTP status code with clear error message
func assertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected status code %d, got %d", want, got)
	}
}
