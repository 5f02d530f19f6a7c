// Package output provides formatters for displaying recovery run
// summaries in various output formats (pretty, plain, json).
//
// The package uses a registry pattern to allow registration of
// multiple formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// FileOutcome is one file's terminal state, shaped for reporting.
type FileOutcome struct {
	// FileID is the original file id.
	FileID string `json:"file_id"`

	// Name is the file name at first observation.
	Name string `json:"name"`

	// Status is the terminal classification.
	Status types.Status `json:"status"`

	// Reason explains a skip or unrecoverable outcome.
	Reason string `json:"reason,omitempty"`

	// Restored reports whether the file came back out of the trash.
	Restored bool `json:"restored"`

	// Versions is how many prior versions were found.
	Versions int `json:"versions"`

	// ChosenVersionID is the promoted (or would-be promoted) version.
	ChosenVersionID string `json:"chosen_version_id,omitempty"`

	// Delta is how far before the attack the chosen version was created.
	Delta time.Duration `json:"delta,omitempty"`

	// Error is the failure message for failed files.
	Error string `json:"error,omitempty"`
}

// RunStats aggregates counts for the summary footer.
type RunStats struct {
	EventsRead    int            `json:"events_read"`
	Files         int            `json:"files"`
	Restored      int            `json:"restored"`
	Versioned     int            `json:"versioned"`
	Promoted      int            `json:"promoted"`
	Unrecoverable int            `json:"unrecoverable"`
	Failed        int            `json:"failed"`
	Skipped       map[string]int `json:"skipped,omitempty"`
	Duration      time.Duration  `json:"duration"`
}

// Result contains the complete output data for formatting.
type Result struct {
	// Files holds per-file outcomes in first-seen order.
	Files []FileOutcome `json:"files"`

	// Stats aggregates the run.
	Stats RunStats `json:"stats"`

	// ActorLogin is the account the run recovered.
	ActorLogin string `json:"actor_login"`

	// WindowStart and WindowEnd bound the audit query.
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	// AttackStart drove version selection.
	AttackStart time.Time `json:"attack_start"`

	// DryRun indicates promotions were simulated.
	DryRun bool `json:"dry_run"`

	// SnapshotPath is the final checkpoint written by the run.
	SnapshotPath string `json:"snapshot_path,omitempty"`
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds a formatter factory to the registry, replacing any
// existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

func init() {
	DefaultRegistry.Register("pretty", func() Formatter { return &PrettyFormatter{} })
	DefaultRegistry.Register("plain", func() Formatter { return &PlainFormatter{} })
	DefaultRegistry.Register("json", func() Formatter { return &JSONFormatter{} })
}
