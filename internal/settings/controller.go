package settings

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"

	"github.com/rs/zerolog"

	"github.com/fuseinfotech/send2crm/internal/notice"
	"github.com/fuseinfotech/send2crm/internal/options"
	"github.com/fuseinfotech/send2crm/internal/sanitize"
)

var (
	// ErrForbidden is returned when the caller may not manage settings.
	ErrForbidden = errors.New("settings: insufficient permissions")
	// ErrUnknownGroup is returned when a commit names a group that was never registered.
	ErrUnknownGroup = errors.New("settings: unknown group")
)

// Lookup is the result of reading one setting.
type Lookup struct {
	Found bool
	Value string
}

// Controller reads, writes and validates settings through the options host.
type Controller struct {
	reg      *Registry
	opts     *options.Options
	logger   zerolog.Logger
	menuName string
}

// NewController creates a controller over reg and opts.
func NewController(reg *Registry, opts *options.Options, menuName string, logger zerolog.Logger) *Controller {
	if menuName == "" {
		menuName = reg.Slug()
	}
	return &Controller{
		reg:      reg,
		opts:     opts,
		logger:   logger.With().Str("component", "settings").Logger(),
		menuName: menuName,
	}
}

// Registry returns the catalog the controller serves.
func (c *Controller) Registry() *Registry { return c.reg }

// InitializeSettings registers every group's option with the options host.
// Groups without a sanitizer of their own get SanitizeAndValidate.
func (c *Controller) InitializeSettings() {
	for _, g := range c.reg.Groups() {
		s := g.Sanitizer
		if s == nil {
			s = c.groupSanitizer(g.Key)
		}
		c.opts.Register(g.OptionName, s)
		c.logger.Debug().
			Str("group", string(g.Key)).
			Str("option", g.OptionName).
			Str("tab", g.TabName).
			Int("fields", len(c.reg.FieldsForGroup(g.Key))).
			Msg("registered settings group")
	}
}

func (c *Controller) groupSanitizer(ref GroupRef) options.Sanitizer {
	return options.SanitizerFunc(func(ctx context.Context, _ string, raw map[string]string) map[string]string {
		return c.SanitizeAndValidate(ctx, ref, raw)
	})
}

func (c *Controller) optionFor(key string, group GroupRef) string {
	if group == "" {
		name, _ := c.reg.ResolveStorageKey(key)
		return name
	}
	return c.reg.OptionName(group)
}

// Lookup reads key from its group's blob. An empty group is resolved from the
// field metadata. Store failures are logged and reported as not found.
func (c *Controller) Lookup(ctx context.Context, key string, group GroupRef) Lookup {
	optionName := c.optionFor(key, group)
	blob, err := c.opts.Get(ctx, optionName)
	if err != nil {
		c.logger.Warn().Err(err).Str("option", optionName).Str("key", key).Msg("failed to load setting")
		return Lookup{}
	}
	v, ok := blob[key]
	return Lookup{Found: ok, Value: v}
}

// GetSetting returns the stored value of key, or def when it is missing.
func (c *Controller) GetSetting(ctx context.Context, key string, group GroupRef, def string) string {
	l := c.Lookup(ctx, key, group)
	if !l.Found {
		return def
	}
	return l.Value
}

// UpdateSetting sets one key in its group's blob and commits the blob
// through the options host, so sanitizers and filters run.
func (c *Controller) UpdateSetting(ctx context.Context, key, value string, group GroupRef) error {
	optionName := c.optionFor(key, group)
	blob, err := c.opts.Get(ctx, optionName)
	if err != nil {
		return fmt.Errorf("settings: update %q: %w", key, err)
	}
	blob = maps.Clone(blob)
	blob[key] = value
	if _, err := c.opts.Update(ctx, optionName, blob); err != nil {
		return fmt.Errorf("settings: update %q: %w", key, err)
	}
	return nil
}

// Commit applies a submitted form for group and returns the persisted blob.
func (c *Controller) Commit(ctx context.Context, group GroupRef, raw map[string]string) (map[string]string, error) {
	g, ok := c.reg.Group(group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}
	stored, err := c.opts.Update(ctx, g.OptionName, raw)
	if err != nil {
		return nil, fmt.Errorf("settings: commit %s: %w", g.Key, err)
	}
	c.logger.Info().Str("group", string(g.Key)).Int("submitted", len(raw)).Msg("settings committed")
	return stored, nil
}

// SanitizeAndValidate is the default group sanitizer. The result starts from
// the stored blob so that keys missing from raw survive the commit. Each
// submitted key is cleaned with sanitize.TextField and checked by its field's
// validator; a rejected value is replaced by the stored one and an error
// notice is queued on ctx. Keys that are not fields of the group are dropped.
func (c *Controller) SanitizeAndValidate(ctx context.Context, group GroupRef, raw map[string]string) map[string]string {
	optionName := c.reg.OptionName(group)
	stored, err := c.opts.Get(ctx, optionName)
	if err != nil {
		c.logger.Warn().Err(err).Str("option", optionName).Msg("failed to load stored settings, validating against empty blob")
		stored = map[string]string{}
	}
	out := maps.Clone(stored)
	if out == nil {
		out = map[string]string{}
	}

	wantGroup := GroupRef(c.reg.Normalize(string(group), KindGroup))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field, ok := c.reg.Field(key)
		if !ok || c.reg.GroupOf(key) != wantGroup {
			c.logger.Warn().Str("group", string(wantGroup)).Str("key", key).Msg("dropping unknown setting")
			continue
		}
		value := sanitize.TextField(raw[key])
		if field.Validator != nil {
			if verr := field.Validator.Validate(value); verr != nil {
				label := field.Label
				if label == "" {
					label = field.Name
				}
				notice.Add(ctx, key, c.reg.Slug()+"-message", fmt.Sprintf("%s: %v.", label, verr), notice.TypeError)
				c.logger.Info().Str("key", key).Err(verr).Msg("rejected setting value")
				if prev, had := stored[key]; had {
					out[key] = prev
				} else {
					delete(out, key)
				}
				continue
			}
		}
		out[key] = value
	}
	return out
}
