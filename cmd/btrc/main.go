package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	btrc "github.com/schiffy91/btrc"
)

const defaultWritePermission = 0644 // -rw-r--r--

type args struct {
	debug       *bool
	outputPath  *string
	cacheDir    *string
	stdlibPath  *string
	noCache     *bool
	verbose     *bool
	printOutput *bool
}

func readArgs() *args {
	a := &args{
		debug:       flag.Bool("debug", false, "Emit #line directives for C-level source mapping"),
		outputPath:  flag.String("o", "", "Output path (single input only; default: input with .c extension)"),
		cacheDir:    flag.String("cache-dir", defaultCacheDir(), "Disk cache directory"),
		stdlibPath:  flag.String("stdlib", "", "Additional stdlib search path for #include resolution"),
		noCache:     flag.Bool("no-cache", false, "Bypass the disk cache"),
		verbose:     flag.Bool("v", false, "Verbose logging"),
		printOutput: flag.Bool("print", false, "Write generated C to stdout instead of a file"),
	}
	flag.Parse()
	return a
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ".btrc-cache"
	}
	return filepath.Join(base, "btrc")
}

func main() {
	a := readArgs()

	level := slog.LevelWarn
	if *a.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: btrc [flags] file.btrc...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *a.outputPath != "" && len(inputs) > 1 {
		fmt.Fprintln(os.Stderr, "btrc: -o cannot be used with multiple inputs")
		os.Exit(2)
	}

	var cache *btrc.DiskCache
	if !*a.noCache {
		cache = btrc.NewDiskCache(*a.cacheDir)
	}
	var searchPaths []string
	if *a.stdlibPath != "" {
		searchPaths = append(searchPaths, *a.stdlibPath)
	}
	loader := btrc.NewSearchPathLoader(searchPaths...)

	// Each input file is its own translation unit; independent files
	// compile concurrently.
	var group errgroup.Group
	for _, input := range inputs {
		input := input
		group.Go(func() error {
			return compileFile(a, input, loader, cache)
		})
	}
	if err := group.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "btrc:", err)
		os.Exit(1)
	}
}

func compileFile(a *args, input string, loader btrc.IncludeLoader, cache *btrc.DiskCache) error {
	source, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	cfg := &btrc.Config{Debug: *a.debug, SourceFile: input}
	slog.Debug("compiling", "input", input, "debug", cfg.Debug)

	generated, err := btrc.CompileCached(string(source), input, loader, cache, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	if *a.printOutput {
		fmt.Print(generated)
		return nil
	}

	output := *a.outputPath
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".c"
	}
	slog.Debug("writing", "output", output, "bytes", len(generated))
	return os.WriteFile(output, []byte(generated), defaultWritePermission)
}
