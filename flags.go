package main

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

// cliFlags holds the command-line options.
type cliFlags struct {
	port        int
	browser     bool
	config      string
	buildRepo   string
	book        string
	verbose     bool
	showVersion bool

	fs *flag.FlagSet
}

// changed reports whether name was given on the command line.
func (f *cliFlags) changed(name string) bool {
	return f.fs.Changed(name)
}

// parseFlags parses args (without the program name) and returns the
// positional arguments.
func parseFlags(args []string) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("bookpeek", flag.ContinueOnError)
	f := &cliFlags{fs: fs}

	fs.IntVarP(&f.port, "port", "p", 6419, "port to serve on")
	fs.BoolVar(&f.browser, "browser", true, "open browser automatically")
	fs.StringVarP(&f.config, "config", "c", "", "config file (default: bookpeek.yaml in the content root)")
	fs.StringVar(&f.buildRepo, "build-repo", "", "repository holding build/<book>_<ident>.html")
	fs.StringVar(&f.book, "book", "", "book used when opening rendered HTML")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log every request")
	fs.BoolVar(&f.showVersion, "version", false, "show version information")

	fs.Usage = func() { printUsage(os.Stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 1 {
		return nil, nil, fmt.Errorf("%w: expected at most one path, got %d", errUsage, fs.NArg())
	}
	return f, fs.Args(), nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: bookpeek [options] [content-root|figure|document]")
	fmt.Fprintln(w, "\nOptions:")
	fmt.Fprint(w, fs.FlagUsages())
}
