package main

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/razvandimescu/bookpeek/internal/config"
)

// TestPathTraversal requests files outside the content repository through
// every route taking a name.
func TestPathTraversal(t *testing.T) {
	r := newTestRepo(t)
	// a secret next to the repository
	secret := filepath.Join(filepath.Dir(r.repo.Root), "secret.svg")
	if err := os.WriteFile(secret, []byte("<svg>secret</svg>"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(secret) })

	_, h := newTestServer(t, r, nil)

	targets := []string{
		"/doc/section/" + testPathURLEncoded,
		"/doc/section/..%2F..%2Fsecret",
		"/doc/section/" + testPathNullByte,
		"/figure/drawings/..%2F..%2F..%2Fsecret.svg",
		"/figure/drawings/" + testPathNullByte,
		"/asset/drawings/..%2F..%2F..%2Fsecret.svg",
		"/asset/drawings/..%5C..%5C..%5Csecret.svg",
		"/asset/photos/" + testPathURLEncoded,
		"/api/resolve/drawings/..%2F..%2F..%2Fsecret.svg",
		"/api/links/section/..%2F..%2Fsecret",
		"/open/..%2Fsecret",
	}

	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			w := doGet(t, h, target)
			if w.Code == http.StatusOK || w.Code == http.StatusFound {
				t.Errorf("%s: expected rejection, got %d", target, w.Code)
			}
			assertNotContains(t, w.Body.String(), "secret</svg>")
		})
	}
}

func TestPathTraversal_RenderedHTML(t *testing.T) {
	buildRepo := t.TempDir()
	if err := os.WriteFile(filepath.Join(buildRepo, "NEA_x.html"), []byte("outside build"), 0644); err != nil {
		t.Fatal(err)
	}
	_, h := newTestServer(t, newTestRepo(t), func(c *config.Config) {
		c.BuildRepo = buildRepo
		c.DefaultBook = "NEA"
	})

	for _, target := range []string{
		"/html/..%2Fx",
		"/html/x?book=..%2FNEA",
		"/build/..%2FNEA_x.html",
		"/build/" + testPathTraversal,
	} {
		t.Run(target, func(t *testing.T) {
			w := doGet(t, h, target)
			if w.Code == http.StatusOK || w.Code == http.StatusFound {
				t.Errorf("%s: expected rejection, got %d", target, w.Code)
			}
			assertNotContains(t, w.Body.String(), "outside build")
		})
	}
}

// TestServeAsset_SVGSandbox makes sure scripted SVGs cannot run on the
// preview origin.
func TestServeAsset_SVGSandbox(t *testing.T) {
	r := newTestRepo(t)
	r.write("contents/drawings/evil.svg", `<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)
	_, h := newTestServer(t, r, nil)

	w := doGet(t, h, "/asset/drawings/evil.svg")
	assertStatusCode(t, w.Code, http.StatusOK)
	csp := w.Header().Get("Content-Security-Policy")
	assertContains(t, csp, "default-src 'none'")
	assertContains(t, csp, "sandbox")
}

// TestDocumentSanitizing checks raw HTML in documents cannot inject script.
func TestDocumentSanitizing(t *testing.T) {
	r := newTestRepo(t)
	r.write("contents/sections/xss.md", testMarkdownScript+"\n\n<img src=x onerror=alert(1)>\n")
	_, h := newTestServer(t, r, nil)

	w := doGet(t, h, "/doc/section/xss")
	assertStatusCode(t, w.Code, http.StatusOK)
	body := w.Body.String()
	assertNotContains(t, body, "<script>alert(1)</script>")
	assertNotContains(t, body, "onerror")
	assertNotContains(t, body, "javascript:alert")
}

func TestFigureReportEscaping(t *testing.T) {
	r := newTestRepo(t)
	r.write("contents/drawings/42.txt", `<img src=x onerror=alert(1)>`)
	_, h := newTestServer(t, r, nil)

	w := doGet(t, h, "/figure/drawings/42.svg")
	assertStatusCode(t, w.Code, http.StatusOK)
	assertNotContains(t, w.Body.String(), "<img src=x")
}
