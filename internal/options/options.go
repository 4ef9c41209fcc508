// Package options is the persistence host the settings layer registers with.
// It loads and stores whole option blobs and runs the commit pipeline:
// the option's sanitizer first, then every pre-commit filter in the order
// they were added. The value returned by the last filter is what gets stored.
package options

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/rs/zerolog"

	configstore "github.com/fuseinfotech/send2crm/internal/config/store"
)

// Backend is the durable key/value storage behind Options.
type Backend interface {
	GetOption(ctx context.Context, name string) (map[string]string, error)
	SetOption(ctx context.Context, name string, value map[string]string) error
}

// Sanitizer cleans a submitted value before it is committed.
type Sanitizer interface {
	Sanitize(ctx context.Context, optionName string, value map[string]string) map[string]string
}

// SanitizerFunc adapts a function to Sanitizer.
type SanitizerFunc func(ctx context.Context, optionName string, value map[string]string) map[string]string

func (f SanitizerFunc) Sanitize(ctx context.Context, optionName string, value map[string]string) map[string]string {
	return f(ctx, optionName, value)
}

// Filter inspects the pending value against the stored one and returns the
// value that should actually be persisted.
type Filter interface {
	Filter(ctx context.Context, newValue, oldValue map[string]string, optionName string) map[string]string
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ctx context.Context, newValue, oldValue map[string]string, optionName string) map[string]string

func (f FilterFunc) Filter(ctx context.Context, newValue, oldValue map[string]string, optionName string) map[string]string {
	return f(ctx, newValue, oldValue, optionName)
}

// Options runs the commit pipeline over a Backend.
type Options struct {
	backend Backend
	logger  zerolog.Logger

	mu         sync.RWMutex
	sanitizers map[string]Sanitizer
	filters    map[string][]Filter
}

// New creates an Options host over backend.
func New(backend Backend, logger zerolog.Logger) *Options {
	return &Options{
		backend:    backend,
		logger:     logger.With().Str("component", "options").Logger(),
		sanitizers: make(map[string]Sanitizer),
		filters:    make(map[string][]Filter),
	}
}

// Register declares name as a managed option with an optional sanitizer.
// Registering the same name again replaces the sanitizer.
func (o *Options) Register(name string, s Sanitizer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sanitizers[name] = s
}

// Registered reports whether name was declared with Register.
func (o *Options) Registered(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.sanitizers[name]
	return ok
}

// AddFilter appends a pre-commit filter for name.
func (o *Options) AddFilter(name string, f Filter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filters[name] = append(o.filters[name], f)
}

// Get loads the blob stored under name. A missing option is an empty map, not an error.
func (o *Options) Get(ctx context.Context, name string) (map[string]string, error) {
	value, err := o.backend.GetOption(ctx, name)
	if configstore.IsNotFound(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Update commits value under name through the sanitizer and filters and returns
// what was persisted. When the final value equals the stored one nothing is written.
func (o *Options) Update(ctx context.Context, name string, value map[string]string) (map[string]string, error) {
	old, err := o.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("options: load %q: %w", name, err)
	}

	o.mu.RLock()
	sanitizer := o.sanitizers[name]
	filters := append([]Filter(nil), o.filters[name]...)
	o.mu.RUnlock()

	pending := maps.Clone(value)
	if pending == nil {
		pending = map[string]string{}
	}
	if sanitizer != nil {
		pending = sanitizer.Sanitize(ctx, name, pending)
	}
	for _, f := range filters {
		pending = f.Filter(ctx, pending, maps.Clone(old), name)
	}

	if maps.Equal(pending, old) {
		o.logger.Debug().Str("option", name).Msg("value unchanged, skipping write")
		return pending, nil
	}

	if err := o.backend.SetOption(ctx, name, pending); err != nil {
		return nil, fmt.Errorf("options: store %q: %w", name, err)
	}
	o.logger.Info().Str("option", name).Int("keys", len(pending)).Msg("option updated")
	return pending, nil
}
