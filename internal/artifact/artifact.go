// Package artifact locates pre-rendered HTML pages in a build repository.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for artifact lookup.
var (
	ErrMissingSetting = errors.New("missing setting")
	ErrNotFound       = errors.New("rendered HTML not found")
	ErrInvalidIdent   = errors.New("invalid ident")
)

// Setting names reported by ErrMissingSetting.
const (
	SettingBuildRepo   = "buildRepo"
	SettingDefaultBook = "defaultBook"
)

// Path returns <buildRepo>/build/<book>_<ident>.html without checking that it
// exists.
func Path(buildRepo, book, ident string) string {
	return filepath.Join(buildRepo, "build", book+"_"+ident+".html")
}

// Locate returns the rendered HTML file for ident in book. Missing settings
// and a missing file are reported with distinct sentinels; the not-found error
// names the exact path that was expected.
func Locate(buildRepo, book, ident string) (string, error) {
	if strings.TrimSpace(buildRepo) == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingSetting, SettingBuildRepo)
	}
	if strings.TrimSpace(book) == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingSetting, SettingDefaultBook)
	}
	if ident == "" || strings.ContainsAny(ident, "/\\\x00") || strings.ContainsAny(book, "/\\\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdent, ident)
	}

	path := Path(buildRepo, book, ident)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return path, nil
}
