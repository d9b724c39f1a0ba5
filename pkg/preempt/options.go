package preempt

import (
	"log/slog"

	"github.com/randalmurphal/preempt/pkg/preempt/checkpoint"
	"github.com/randalmurphal/preempt/pkg/preempt/config"
	"github.com/randalmurphal/preempt/pkg/preempt/observability"
	"github.com/randalmurphal/preempt/pkg/preempt/tracker"
)

// Option configures a Checkpointer.
type Option func(*Checkpointer)

// WithSection registers a caller-owned trainee-state object under a section
// name. The section is captured on every save and restored on load when
// present in the payload.
func WithSection(name string, s Snapshotter) Option {
	return func(c *Checkpointer) {
		c.sections = append(c.sections, namedSection{name: name, state: s})
	}
}

// WithModel registers the primary model section.
func WithModel(s Snapshotter) Option {
	return WithSection(checkpoint.SectionModel, s)
}

// WithOptimizer registers the optimizer section.
func WithOptimizer(s Snapshotter) Option {
	return WithSection(checkpoint.SectionOptimizer, s)
}

// WithLRScheduler registers the learning-rate schedule section.
func WithLRScheduler(s Snapshotter) Option {
	return WithSection(checkpoint.SectionScheduler, s)
}

// WithScaler registers the gradient scale controller section.
func WithScaler(s Snapshotter) Option {
	return WithSection(checkpoint.SectionScaler, s)
}

// WithRNG registers random-generator devices whose state is captured per
// checkpoint. Devices recorded in a checkpoint but absent at load time are
// skipped with a warning.
func WithRNG(devices ...RNGDevice) Option {
	return func(c *Checkpointer) {
		c.devices = append(c.devices, devices...)
	}
}

// WithSaveDir sets the checkpoint directory root for the default file store.
// Default: "checkpoints".
func WithSaveDir(dir string) Option {
	return func(c *Checkpointer) { c.saveDir = dir }
}

// WithStore replaces the default file store with a custom backend.
func WithStore(store checkpoint.Store) Option {
	return func(c *Checkpointer) { c.store = store }
}

// WithTracker attaches a run-tracking service adapter.
// Default: no tracking.
func WithTracker(t tracker.Tracker) Option {
	return func(c *Checkpointer) { c.tracker = t }
}

// WithLogger sets the logger. Overrides WithVerbose.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checkpointer) { c.logger = logger }
}

// WithVerbose enables per-action logging of saves, loads, prunes, and
// requeues, each stamped with the elapsed time since creation.
// Silent mode (the default) surfaces only fatal errors, which are returned,
// not logged.
func WithVerbose(verbose bool) Option {
	return func(c *Checkpointer) { c.verbose = verbose }
}

// WithMetrics attaches a metrics recorder.
// Default: no metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *Checkpointer) { c.metrics = m }
}

// WithTracing attaches a span manager.
// Default: no tracing.
func WithTracing(s observability.SpanManager) Option {
	return func(c *Checkpointer) { c.spans = s }
}

// WithMetadata sets default metadata merged into every checkpoint.
// Per-step metadata passed to Step takes precedence on key conflicts.
func WithMetadata(meta map[string]any) Option {
	return func(c *Checkpointer) { c.defaultMeta = meta }
}

// WithKeepCheckpointsOnError keeps existing checkpoints when a unit of work
// bracketed by Epoch fails. The default deletes all checkpoints for the run
// on such an error, forcing a clean restart, since an error inside the unit
// of work may have already mutated shared trainee state in place.
func WithKeepCheckpointsOnError(keep bool) Option {
	return func(c *Checkpointer) { c.keepOnError = keep }
}

// FromConfig translates a loaded configuration into options.
// See the config package documentation for the recognized keys.
func FromConfig(cfg config.Config) ([]Option, error) {
	var opts []Option

	opts = append(opts,
		WithSaveDir(cfg.String("save_dir", "checkpoints")),
		WithVerbose(cfg.Bool("verbose", false)),
		WithKeepCheckpointsOnError(cfg.Bool("keep_on_error", false)),
	)

	if meta := cfg.StringMap("metadata", nil); meta != nil {
		opts = append(opts, WithMetadata(meta))
	}

	if cfg.String("store", "file") == "sqlite" {
		store, err := checkpoint.NewSQLiteStore(cfg.String("sqlite_path", "checkpoints.db"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithStore(store))
	}

	return opts, nil
}
