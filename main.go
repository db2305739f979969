package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/razvandimescu/bookpeek/internal/config"
	"github.com/razvandimescu/bookpeek/internal/content"
	"github.com/razvandimescu/bookpeek/internal/toc"
)

var (
	// Build info (set via ldflags)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(ExitSuccess)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCodeFor(err))
	}
}

func run(args []string) error {
	flags, rest, err := parseFlags(args)
	if err != nil {
		return err
	}
	if flags.showVersion {
		fmt.Printf("bookpeek %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}

	// maxprocs.Set only fails on an invalid GOMAXPROCS env; runtime defaults apply then.
	if flags.verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(log.Printf))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	}

	target := ""
	if len(rest) > 0 {
		target = rest[0]
	}
	cfg, startPage, err := loadSettings(flags, target, os.Getenv)
	if err != nil {
		return err
	}

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}
	srv.verbose = flags.verbose
	defer srv.close()

	if err := srv.watchContent(); err != nil {
		log.Printf("Warning: Cannot watch content for changes: %v", err)
	}
	return serve(srv, startPage)
}

// loadSettings merges config file, environment and flags, in increasing
// precedence, and returns the page to open first.
func loadSettings(flags *cliFlags, target string, getenv func(string) string) (*config.Config, string, error) {
	root, startPage, err := resolveTarget(target)
	if err != nil {
		return nil, "", err
	}

	var cfg *config.Config
	if flags.config != "" {
		cfg, err = config.Load(flags.config)
	} else {
		cfg, err = config.Discover(root)
	}
	if err != nil {
		return nil, "", err
	}
	if target != "" || cfg.Root == "" {
		cfg.Root = root
	}

	cfg.ApplyEnv(getenv)

	if flags.changed("port") {
		cfg.Port = flags.port
	}
	if flags.changed("browser") {
		cfg.Browser = flags.browser
	}
	if flags.changed("build-repo") {
		abs, err := filepath.Abs(flags.buildRepo)
		if err != nil {
			return nil, "", fmt.Errorf("%w: --build-repo: %v", errUsage, err)
		}
		cfg.BuildRepo = abs
	}
	if flags.changed("book") {
		cfg.DefaultBook = flags.book
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, startPage, nil
}

// resolveTarget maps the positional argument to the content root. A figure or
// document inside the repository becomes the start page.
func resolveTarget(target string) (root, startPage string, err error) {
	if target == "" {
		target = "."
	}
	absPath, err := filepath.Abs(target)
	if err != nil {
		return "", "", fmt.Errorf("getting absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return "", "", fmt.Errorf("%w: %s", errNoRoot, target)
	}
	if err != nil {
		return "", "", fmt.Errorf("accessing %s: %w", target, err)
	}
	if info.IsDir() {
		return absPath, "", nil
	}

	root, ok := findRoot(filepath.Dir(absPath))
	if !ok {
		return "", "", fmt.Errorf("%w: %s", errNotARoot, target)
	}
	return root, startPageFor(content.New(root), absPath), nil
}

// findRoot walks up from dir to the first directory holding toc/ or
// contents/.
func findRoot(dir string) (string, bool) {
	for {
		for _, marker := range []string{"toc", "contents"} {
			if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func startPageFor(repo content.Repository, path string) string {
	dir, name := filepath.Dir(path), filepath.Base(path)
	if kind, ok := content.FigureFromPath(path); ok && dir == repo.FigureDir(kind) {
		return figureURL(kind, name)
	}
	if strings.EqualFold(filepath.Ext(name), ".md") {
		for _, kind := range content.Kinds {
			if dir == repo.DocumentDir(kind) {
				return "/doc/" + string(kind) + "/" + url.PathEscape(content.Stem(name))
			}
		}
	}
	return ""
}

// serve runs the HTTP server until SIGINT or SIGTERM.
func serve(srv *server, startPage string) error {
	addr := srv.listenAddr()
	baseURL := fmt.Sprintf("http://%s", addr)

	books, err := toc.ListBooks(srv.repo)
	if err != nil {
		log.Printf("Warning: cannot list books: %v", err)
	}
	fmt.Printf("bookpeek at %s\n", baseURL)
	fmt.Printf("Browsing %s - found %d book(s)\n", srv.repo.Root, len(books))
	if srv.cfg.BuildRepo == "" || srv.cfg.DefaultBook == "" {
		fmt.Println("Rendered HTML disabled until buildRepo and defaultBook are set")
	}
	fmt.Println("Press Ctrl+C to quit")

	if srv.cfg.Browser {
		go func() {
			time.Sleep(500 * time.Millisecond)
			openURL(baseURL + startPage)
		}()
	}

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     srv.routes(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: SSE streams are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigint
		log.Println("\nShutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.close()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openURL(url string) {
	var cmd string
	var args []string

	switch {
	case fileExists("/usr/bin/open"): // macOS
		cmd = "open"
		args = []string{url}
	case fileExists("/usr/bin/xdg-open"): // Linux
		cmd = "xdg-open"
		args = []string{url}
	default: // Windows
		cmd = "cmd"
		args = []string{"/c", "start", url}
	}

	c := exec.Command(cmd, args...) // #nosec G204 -- fixed opener, URL built locally
	if err := c.Start(); err != nil {
		log.Printf("Failed to open URL %s: %v", url, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
