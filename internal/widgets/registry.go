package widgets

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/metrics"
)

// Registry holds the current widget definitions. Reads are safe while a
// reload swaps the set.
type Registry struct {
	mu       sync.RWMutex
	widgets  map[string]Widget
	path     string
	log      *logrus.Logger
	onReload []func(changed []string)
}

// NewRegistry creates a registry seeded with widgets. It has no backing file,
// so Reload is a no-op.
func NewRegistry(log *logrus.Logger, widgets ...Widget) *Registry {
	r := &Registry{widgets: make(map[string]Widget, len(widgets)), log: log}
	for _, w := range widgets {
		r.widgets[w.ID] = w
	}

	return r
}

// LoadRegistry reads path and returns a registry bound to it.
func LoadRegistry(path string, log *logrus.Logger) (*Registry, error) {
	widgets, err := readFile(path)
	if err != nil {
		return nil, err
	}

	r := NewRegistry(log, widgets...)
	r.path = path

	return r, nil
}

func readFile(path string) ([]Widget, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied config path.
	if err != nil {
		return nil, fmt.Errorf("opening widget file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only.

	return Parse(f)
}

// Path returns the backing file, or "" for a static registry.
func (r *Registry) Path() string {
	return r.path
}

// Get returns the widget with id.
func (r *Registry) Get(id string) (Widget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.widgets[id]

	return w, ok
}

// List returns every widget ordered by ID.
func (r *Registry) List() []Widget {
	r.mu.RLock()
	out := make([]Widget, 0, len(r.widgets))
	for _, w := range r.widgets {
		out = append(out, w)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// OnReload registers fn to run after every successful swap with the IDs of
// widgets that were added, removed or redefined.
func (r *Registry) OnReload(fn func(changed []string)) {
	r.mu.Lock()
	r.onReload = append(r.onReload, fn)
	r.mu.Unlock()
}

// Replace swaps in a new widget set.
func (r *Registry) Replace(widgets []Widget) {
	next := make(map[string]Widget, len(widgets))
	for _, w := range widgets {
		next[w.ID] = w
	}

	r.mu.Lock()
	changed := diff(r.widgets, next)
	r.widgets = next
	hooks := append([]func([]string){}, r.onReload...)
	r.mu.Unlock()

	if len(changed) == 0 {
		return
	}

	for _, fn := range hooks {
		fn(changed)
	}
}

// Reload rereads the backing file. On error the previous set stays active.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}

	widgets, err := readFile(r.path)
	if err != nil {
		metrics.WidgetReloads.WithLabelValues("error").Inc()
		return err
	}

	r.Replace(widgets)
	metrics.WidgetReloads.WithLabelValues("ok").Inc()

	r.log.WithFields(logrus.Fields{
		"path":    r.path,
		"widgets": len(widgets),
	}).Info("widget definitions reloaded")

	return nil
}

func diff(prev, next map[string]Widget) []string {
	var changed []string

	for id, w := range next {
		old, ok := prev[id]
		if !ok || !equal(old, w) {
			changed = append(changed, id)
		}
	}

	for id := range prev {
		if _, ok := next[id]; !ok {
			changed = append(changed, id)
		}
	}

	sort.Strings(changed)

	return changed
}

func equal(a, b Widget) bool {
	return a.Title == b.Title && a.Limit == b.Limit && a.TaxonomyFields() == b.TaxonomyFields() &&
		a.Datastore == b.Datastore && a.Table == b.Table
}
