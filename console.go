package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ConsoleRenderer subscribes to a ProgressBus and renders human-readable
// output: one progress bar per in-flight download, multiplexed onto a
// single terminal, and colored status lines for the rest. Respects
// --no-color/NO_COLOR and --quiet.
type ConsoleRenderer struct {
	mu    sync.Mutex
	bars  map[string]*progressbar.ProgressBar
	quiet bool
}

// NewConsoleRenderer builds a renderer. noColor forces plain output even on
// a TTY; color is also disabled automatically when stdout is not a TTY or
// NO_COLOR is set.
func NewConsoleRenderer(quiet, noColor bool) *ConsoleRenderer {
	if noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	return &ConsoleRenderer{bars: map[string]*progressbar.ProgressBar{}, quiet: quiet}
}

// Attach subscribes the renderer to bus.
func (r *ConsoleRenderer) Attach(bus *ProgressBus) {
	bus.Subscribe(r.handle)
}

func (r *ConsoleRenderer) handle(e Event) {
	if r.quiet && e.Type != EventPackageError {
		return
	}

	switch e.Type {
	case EventStart:
		color.Cyan("Resolving %d package(s)...\n", len(e.Packages))
	case EventPackageStart:
		if e.Status == StatusDownloading {
			r.mu.Lock()
			r.bars[e.Package] = progressbar.NewOptions(-1,
				progressbar.OptionSetDescription(e.Package),
				progressbar.OptionSetWriter(os.Stdout),
			)
			r.mu.Unlock()
		} else {
			fmt.Printf("%s %s\n", color.YellowString("%s", e.Status), e.Package)
		}
	case EventPackageProgress:
		r.mu.Lock()
		bar := r.bars[e.Package]
		r.mu.Unlock()
		if bar != nil {
			if e.TotalBytes > 0 {
				bar.ChangeMax64(e.TotalBytes)
			}
			bar.Set64(e.BytesReceived)
		}
	case EventPackageComplete:
		r.mu.Lock()
		if bar, ok := r.bars[e.Package]; ok {
			bar.Finish()
			delete(r.bars, e.Package)
		}
		r.mu.Unlock()
		if e.Cached {
			fmt.Printf("%s %s (cached)\n", color.GreenString("✓"), e.Package)
		} else {
			fmt.Printf("%s %s\n", color.GreenString("✓"), e.Package)
		}
	case EventPackageError:
		fmt.Fprintf(os.Stderr, "%s %s: %s\n", color.RedString("✗"), e.Package, e.Error)
	}
}
