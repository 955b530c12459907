package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	jsonOut bool
	quiet   bool
	noColor bool
}

func addCommonFlags(fs *flag.FlagSet, cf *commonFlags) {
	fs.BoolVar(&cf.jsonOut, "json", false, "emit machine-readable JSON")
	fs.BoolVar(&cf.quiet, "quiet", false, "suppress progress output")
	fs.BoolVar(&cf.quiet, "q", false, "suppress progress output (shorthand)")
	fs.BoolVar(&cf.noColor, "no-color", false, "disable colored output")
}

// newOperationInstaller wires an Installer together with a progress bus, an
// optional console renderer, and an interrupt coordinator, matching the
// lock/cleanup shape the workspace lock and interrupt coordinator were built
// for. Callers must invoke the returned coordinator's Stop when the
// operation ends (success or failure) to release the signal watcher.
func newOperationInstaller(ctx context.Context, cf commonFlags) (context.Context, *Installer, *InterruptCoordinator) {
	root, err := CurrentWorkspaceRoot()
	if err != nil {
		root, _ = os.Getwd()
	}

	inst := NewInstaller(root)

	runCtx, coord := NewInterruptCoordinator(ctx)

	if !cf.quiet {
		renderer := NewConsoleRenderer(cf.quiet, cf.noColor)
		renderer.Attach(inst.Bus)
	}

	return runCtx, inst, coord
}

func exitCodeForError(err error) int {
	if err == nil {
		return exitSuccess
	}
	switch err.(type) {
	case *ManifestNotFoundError:
		return exitManifestMiss
	case *NetworkError, *RateLimitedError:
		return exitNetworkFailed
	default:
		return exitFailed
	}
}

func printErr(cf commonFlags, err error) {
	if cf.jsonOut {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintln(os.Stderr, string(data))
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func cmdInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}

	dir := "."
	if rest := fs.Args(); len(rest) > 0 {
		dir = rest[0]
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		printErr(cf, err)
		return exitFailed
	}

	manifestPath := filepath.Join(dir, ManifestFileName)
	if fileExists(manifestPath) {
		printErr(cf, fmt.Errorf("%s already exists", manifestPath))
		return exitFailed
	}

	name := filepath.Base(absOrSelf(dir))
	m := &Manifest{
		Model:        ModelInfo{Name: name, Entry: defaultEntry},
		Dependencies: map[string]*Dependency{},
	}
	if err := m.Save(dir); err != nil {
		printErr(cf, err)
		return exitFailed
	}

	if !cf.quiet {
		fmt.Printf("Initialized %s\n", manifestPath)
	}
	return exitSuccess
}

func absOrSelf(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}

func cmdInstall(args []string) int {
	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	var cf commonFlags
	frozen := fs.Bool("frozen-lock", false, "fail instead of updating the lock")
	addCommonFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}

	ctx, inst, coord := newOperationInstaller(context.Background(), cf)
	defer coord.Stop()

	lock, err := inst.Install(ctx, InstallOptions{Frozen: *frozen})
	if err != nil {
		printErr(cf, err)
		return exitCodeForError(err)
	}

	printLockSummary(cf, lock)
	return exitSuccess
}

func cmdAdd(args []string) int {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: dlang-deps add <owner/repo[@ref]>")
		return exitFailed
	}
	specifier := rest[0]

	ctx, inst, coord := newOperationInstaller(context.Background(), cf)
	defer coord.Stop()

	locked, err := inst.Add(ctx, specifier)
	if err != nil {
		printErr(cf, err)
		return exitCodeForError(err)
	}

	if cf.jsonOut {
		data, _ := json.Marshal(locked)
		fmt.Println(string(data))
	} else if !cf.quiet {
		fmt.Printf("Added %s @ %s (%s)\n", specifier, locked.Ref, locked.Commit)
	}
	return exitSuccess
}

func cmdRemove(args []string) int {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: dlang-deps remove <name>")
		return exitFailed
	}
	name := rest[0]

	_, inst, coord := newOperationInstaller(context.Background(), cf)
	defer coord.Stop()

	if err := inst.Remove(name); err != nil {
		printErr(cf, err)
		return exitCodeForError(err)
	}

	if !cf.quiet {
		fmt.Printf("Removed %s\n", name)
	}
	return exitSuccess
}

func cmdUpdate(args []string) int {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}

	ctx, inst, coord := newOperationInstaller(context.Background(), cf)
	defer coord.Stop()

	lock, err := inst.Update(ctx)
	if err != nil {
		printErr(cf, err)
		return exitCodeForError(err)
	}

	printLockSummary(cf, lock)
	return exitSuccess
}

func cmdUpgrade(args []string) int {
	fs := flag.NewFlagSet("upgrade", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}
	rest := fs.Args()

	ctx, inst, coord := newOperationInstaller(context.Background(), cf)
	defer coord.Stop()

	if len(rest) == 0 {
		entries, err := inst.Outdated(ctx)
		if err != nil {
			printErr(cf, err)
			return exitCodeForError(err)
		}
		printOutdated(cf, entries)
		return exitSuccess
	}

	pkg := rest[0]
	version := ""
	if len(rest) > 1 {
		version = rest[1]
	}

	lock, err := inst.Upgrade(ctx, pkg, version)
	if err != nil {
		printErr(cf, err)
		return exitCodeForError(err)
	}
	printLockSummary(cf, lock)
	return exitSuccess
}

func cmdOutdated(args []string) int {
	fs := flag.NewFlagSet("outdated", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}

	ctx, inst, coord := newOperationInstaller(context.Background(), cf)
	defer coord.Stop()

	entries, err := inst.Outdated(ctx)
	if err != nil {
		printErr(cf, err)
		return exitCodeForError(err)
	}
	printOutdated(cf, entries)
	return exitSuccess
}

func cmdCacheClear(args []string) int {
	fs := flag.NewFlagSet("cache-clear", flag.ContinueOnError)
	var cf commonFlags
	addCommonFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}

	_, inst, coord := newOperationInstaller(context.Background(), cf)
	defer coord.Stop()

	if err := inst.CacheClear(); err != nil {
		printErr(cf, err)
		return exitCodeForError(err)
	}

	if !cf.quiet {
		fmt.Println("Cache cleared.")
	}
	return exitSuccess
}

func printLockSummary(cf commonFlags, lock *Lock) {
	if lock == nil {
		return
	}
	if cf.jsonOut {
		data, _ := json.Marshal(lock)
		fmt.Println(string(data))
		return
	}
	if cf.quiet {
		return
	}
	fmt.Printf("%d package(s) locked\n", len(lock.Dependencies))
}

func printOutdated(cf commonFlags, entries []OutdatedEntry) {
	if cf.jsonOut {
		data, _ := json.Marshal(entries)
		fmt.Println(string(data))
		return
	}
	if len(entries) == 0 {
		if !cf.quiet {
			fmt.Println("All dependencies up to date.")
		}
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %s -> %s (%s)\n", e.Name, e.Current, e.Latest, e.Bump)
	}
}
