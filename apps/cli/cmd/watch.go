package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDebounceDelay is the debounce delay for file watch events
var WatchDebounceDelay = 300 * time.Millisecond

// watchedInputs lists the files a request reads on every run.
func (a *app) watchedInputs(data string) []string {
	var files []string
	if path, ok := strings.CutPrefix(data, "@"); ok {
		files = append(files, path)
	}
	if a.configPath != "" {
		files = append(files, a.configPath)
	}
	if a.envFile != "" {
		files = append(files, a.envFile)
	}
	return files
}

// watchFiles calls send once, then again every time one of files is
// written, until ctx is done or an interrupt arrives. Errors from send are
// reported on errOut and do not stop the loop.
func watchFiles(ctx context.Context, errOut io.Writer, files []string, send func() error) error {
	if len(files) == 0 {
		return usageError(fmt.Errorf("--watch needs --data @file, --config or --env-file"))
	}

	var mu sync.Mutex
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer func() {
		// Wait for a run in progress; later runs see the cancelled context.
		stop()
		mu.Lock()
		mu.Unlock()
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files instead of writing them, so watch the
	// parent directories and filter by name.
	targets := make(map[string]bool, len(files))
	watchedDirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return usageError(err)
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watchedDirs[dir] = true
	}

	run := func(changed string) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if changed != "" {
			fmt.Fprintf(errOut, "File changed: %s\n", changed)
		}
		if err := send(); err != nil {
			fmt.Fprintln(errOut, "Error:", err)
		}
		fmt.Fprintf(errOut, "\nWatching for changes... (press Ctrl+C to stop)\n")
	}
	run("")

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, _ := filepath.Abs(event.Name)
			if !targets[name] || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			changed := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				run(changed)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(errOut, "watcher error:", err)
		}
	}
}
