package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/alfredjeanlab/statusd/internal/codec"
	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/alfredjeanlab/statusd/internal/model"
	"github.com/alfredjeanlab/statusd/internal/sampler"
)

// StatusRunning is the description published for a matched process.
const StatusRunning = "Running"

// ProcessWatcher publishes a Process event for every watched name that is a
// case-insensitive substring of a running process name.
//
// Each poll reports at most one match per watched name, and stops scanning
// the process list once every name has matched. A second process matching
// the same name in the same poll is not reported separately.
type ProcessWatcher struct {
	bus     Publisher
	sampler sampler.Sampler
	logger  *slog.Logger

	mu    sync.Mutex
	watch []string
}

func NewProcessWatcher(bus Publisher, s sampler.Sampler, watch []string, logger *slog.Logger) *ProcessWatcher {
	w := &ProcessWatcher{bus: bus, sampler: s, logger: logger}
	w.SetWatchList(watch)
	return w
}

// SetWatchList replaces the watch list. Empty and duplicate names are dropped.
func (w *ProcessWatcher) SetWatchList(names []string) {
	seen := make(map[string]struct{}, len(names))
	list := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		list = append(list, n)
	}

	w.mu.Lock()
	w.watch = list
	w.mu.Unlock()
}

// Watch adds a name to the watch list.
func (w *ProcessWatcher) Watch(name string) {
	w.SetWatchList(append(w.Watching(), name))
}

// Unwatch removes a name from the watch list.
func (w *ProcessWatcher) Unwatch(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, n := range w.watch {
		if n == name {
			w.watch = append(w.watch[:i:i], w.watch[i+1:]...)
			return
		}
	}
}

// Watching returns a copy of the watch list.
func (w *ProcessWatcher) Watching() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.watch...)
}

// Poll takes one process snapshot and publishes the matches.
func (w *ProcessWatcher) Poll(ctx context.Context) {
	watch := w.Watching()
	if len(watch) == 0 {
		return
	}

	procs, err := w.sampler.Processes(ctx)
	if err != nil {
		w.logger.Warn("process watcher: snapshot failed", "err", err)
		return
	}

	lowered := make([]string, len(watch))
	for i, n := range watch {
		lowered[i] = strings.ToLower(n)
	}
	found := make([]bool, len(watch))
	remaining := len(watch)

	for _, p := range procs {
		name := strings.ToLower(p.Name)
		for i, want := range lowered {
			if found[i] || !strings.Contains(name, want) {
				continue
			}
			found[i] = true
			remaining--
			w.logger.Debug("process watcher: match", "watch", watch[i], "process", p.Name, "pid", p.PID)
			event := model.NewEvent(watch[i], model.KindProcess, model.Description(StatusRunning))
			w.bus.Publish(events.TopicProcess, codec.Encode(event))
		}
		if remaining == 0 {
			break
		}
	}
}
