// Package settings holds the catalog of configurable fields, sections and
// groups, and the controller that reads, writes, validates and renders them.
package settings

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fuseinfotech/send2crm/internal/options"
)

// Kind is the suffix a normalized key carries.
type Kind string

const (
	KindSection Kind = "section"
	KindPage    Kind = "page"
	KindGroup   Kind = "group"
	KindOption  Kind = "option"
)

var knownKinds = []Kind{KindSection, KindPage, KindGroup, KindOption}

const (
	// DefaultGroupKey is the group a field lands in when its own group is unknown.
	DefaultGroupKey = "settings"
	// DefaultTab is the tab shown when the request names none.
	DefaultTab = "default_tab"
)

// GroupRef identifies a registered group by its normalized key.
type GroupRef string

// SectionRef identifies a registered section by its normalized key.
type SectionRef string

// GroupSanitizer cleans a group's submitted blob at commit time.
type GroupSanitizer = options.Sanitizer

// FieldValidator rejects a sanitized field value.
type FieldValidator interface {
	Validate(value string) error
}

// FieldContext is what a FieldRenderer receives for one field.
type FieldContext struct {
	Field     Field
	ID        string
	LabelFor  string
	InputName string
	Value     string
}

// FieldRenderer writes the form control for a field.
type FieldRenderer interface {
	RenderField(w io.Writer, fc FieldContext) error
}

// SectionRenderer writes the introduction of a section.
type SectionRenderer interface {
	RenderSection(w io.Writer, s Section) error
}

// Field is one configurable setting.
type Field struct {
	Name        string
	Label       string
	Renderer    FieldRenderer
	Description string
	Section     SectionRef
	Tab         string
	Group       GroupRef
	Validator   FieldValidator
}

// Section is a labelled block of fields on a tab.
type Section struct {
	Key         SectionRef
	Label       string
	Description string
	Render      SectionRenderer
	Tab         string
}

// Group is the unit of persistence: every field in it is stored as one blob
// under OptionName.
type Group struct {
	Key        GroupRef
	OptionName string
	Sanitizer  GroupSanitizer
	TabName    string
	TabTitle   string
}

// Tab is one entry of the settings page tab strip.
type Tab struct {
	Name  string
	Title string
}

// Registry is the in-memory catalog. It is filled during startup and read
// concurrently afterwards.
type Registry struct {
	slug string

	mu       sync.RWMutex
	groups   []Group
	sections []Section
	fields   []Field
	fieldIdx map[string]int
}

// NewRegistry creates an empty registry whose keys are prefixed with slug.
func NewRegistry(slug string) *Registry {
	return &Registry{
		slug:     slug,
		fieldIdx: make(map[string]int),
	}
}

// Slug returns the plugin slug used as key prefix.
func (r *Registry) Slug() string { return r.slug }

// Normalize derives "{slug}_{base}_{kind}" from key. A key that already
// carries the prefix or any known kind suffix has them removed first, so
// normalizing a normalized key returns it unchanged.
func (r *Registry) Normalize(key string, kind Kind) string {
	base := strings.TrimSpace(key)
	base = strings.TrimPrefix(base, r.slug+"_")
	for _, k := range knownKinds {
		if trimmed, ok := strings.CutSuffix(base, "_"+string(k)); ok {
			base = trimmed
			break
		}
	}
	if base == "" {
		base = "default"
	}
	return r.slug + "_" + base + "_" + string(kind)
}

// PageID returns the normalized page identifier for a tab.
func (r *Registry) PageID(tab string) string {
	return r.Normalize(tab, KindPage)
}

// AddGroup registers a group, replacing any group with the same normalized key.
func (r *Registry) AddGroup(key string, sanitizer GroupSanitizer, tabName, tabTitle string) GroupRef {
	if tabName == "" {
		tabName = DefaultTab
	}
	if tabTitle == "" {
		tabTitle = tabName
	}
	g := Group{
		Key:        GroupRef(r.Normalize(key, KindGroup)),
		OptionName: r.Normalize(key, KindOption),
		Sanitizer:  sanitizer,
		TabName:    tabName,
		TabTitle:   tabTitle,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.groups {
		if r.groups[i].Key == g.Key {
			r.groups[i] = g
			return g.Key
		}
	}
	r.groups = append(r.groups, g)
	return g.Key
}

// AddSection registers a section, replacing any section with the same normalized key.
// A nil renderer prints the description as a paragraph.
func (r *Registry) AddSection(key, label, description string, renderer SectionRenderer, tabName string) SectionRef {
	if tabName == "" {
		tabName = DefaultTab
	}
	if renderer == nil {
		renderer = DescriptionSection{}
	}
	s := Section{
		Key:         SectionRef(r.Normalize(key, KindSection)),
		Label:       label,
		Description: description,
		Render:      renderer,
		Tab:         tabName,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sections {
		if r.sections[i].Key == s.Key {
			r.sections[i] = s
			return s.Key
		}
	}
	r.sections = append(r.sections, s)
	return s.Key
}

// AddField registers f. Field names are unique; a second registration of the
// same name fails. Section and group references are normalized, and a field
// without a tab inherits its section's.
func (r *Registry) AddField(f Field) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return fmt.Errorf("settings: field name is empty")
	}
	if f.Section != "" {
		f.Section = SectionRef(r.Normalize(string(f.Section), KindSection))
	}
	if f.Group != "" {
		f.Group = GroupRef(r.Normalize(string(f.Group), KindGroup))
	}
	if f.Renderer == nil {
		f.Renderer = TextInput{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.fieldIdx[f.Name]; dup {
		return fmt.Errorf("settings: field %q already registered", f.Name)
	}
	if f.Tab == "" {
		f.Tab = DefaultTab
		for _, s := range r.sections {
			if s.Key == f.Section {
				f.Tab = s.Tab
				break
			}
		}
	}
	r.fieldIdx[f.Name] = len(r.fields)
	r.fields = append(r.fields, f)
	return nil
}

// Field returns the field registered under name.
func (r *Registry) Field(name string) (Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.fieldIdx[name]
	if !ok {
		return Field{}, false
	}
	return r.fields[i], true
}

// FieldOrZero returns the field registered under name or the zero Field.
func (r *Registry) FieldOrZero(name string) Field {
	f, _ := r.Field(name)
	return f
}

// Group returns the group identified by ref, which may be un-normalized.
func (r *Registry) Group(ref GroupRef) (Group, bool) {
	key := GroupRef(r.Normalize(string(ref), KindGroup))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if g.Key == key {
			return g, true
		}
	}
	return Group{}, false
}

// GroupByOption returns the group stored under optionName.
func (r *Registry) GroupByOption(optionName string) (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if g.OptionName == optionName {
			return g, true
		}
	}
	return Group{}, false
}

// GroupOf resolves the group a field is stored in. Unknown fields and fields
// whose group was never registered fall back to the default settings group.
func (r *Registry) GroupOf(name string) GroupRef {
	if f, ok := r.Field(name); ok && f.Group != "" {
		if _, ok := r.Group(f.Group); ok {
			return f.Group
		}
	}
	return GroupRef(r.Normalize(DefaultGroupKey, KindGroup))
}

// OptionName returns the storage key of the group ref.
func (r *Registry) OptionName(ref GroupRef) string {
	if g, ok := r.Group(ref); ok {
		return g.OptionName
	}
	return r.Normalize(string(ref), KindOption)
}

// ResolveStorageKey returns the option a field is stored under and its group.
func (r *Registry) ResolveStorageKey(name string) (string, GroupRef) {
	ref := r.GroupOf(name)
	return r.OptionName(ref), ref
}

// InputName returns the form input name for a field, "{optionName}[{name}]".
func (r *Registry) InputName(name string) string {
	optionName, _ := r.ResolveStorageKey(name)
	return optionName + "[" + name + "]"
}

// Groups returns all groups in registration order.
func (r *Registry) Groups() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Group(nil), r.groups...)
}

// Sections returns all sections in registration order.
func (r *Registry) Sections() []Section {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Section(nil), r.sections...)
}

// Fields returns all fields in registration order.
func (r *Registry) Fields() []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Field(nil), r.fields...)
}

// GroupsForTab returns the groups rendered on tab.
func (r *Registry) GroupsForTab(tab string) []Group {
	var out []Group
	for _, g := range r.Groups() {
		if g.TabName == tab {
			out = append(out, g)
		}
	}
	return out
}

// SectionsForTab returns the sections rendered on tab.
func (r *Registry) SectionsForTab(tab string) []Section {
	var out []Section
	for _, s := range r.Sections() {
		if s.Tab == tab {
			out = append(out, s)
		}
	}
	return out
}

// FieldsForSection returns the fields placed in section ref.
func (r *Registry) FieldsForSection(ref SectionRef) []Field {
	key := SectionRef(r.Normalize(string(ref), KindSection))
	var out []Field
	for _, f := range r.Fields() {
		if f.Section == key {
			out = append(out, f)
		}
	}
	return out
}

// FieldsForGroup returns the fields stored in group ref.
func (r *Registry) FieldsForGroup(ref GroupRef) []Field {
	key := GroupRef(r.Normalize(string(ref), KindGroup))
	var out []Field
	for _, f := range r.Fields() {
		if r.GroupOf(f.Name) == key {
			out = append(out, f)
		}
	}
	return out
}

// Tabs returns the distinct tabs declared by groups, in registration order.
func (r *Registry) Tabs() []Tab {
	seen := make(map[string]bool)
	var out []Tab
	for _, g := range r.Groups() {
		if seen[g.TabName] {
			continue
		}
		seen[g.TabName] = true
		out = append(out, Tab{Name: g.TabName, Title: g.TabTitle})
	}
	return out
}

// ActiveTab picks the tab to render for a requested name: the request if it
// names a known tab, otherwise DefaultTab if registered, otherwise the first
// group's tab.
func (r *Registry) ActiveTab(requested string) string {
	tabs := r.Tabs()
	if len(tabs) == 0 {
		return ""
	}
	for _, t := range tabs {
		if t.Name == requested {
			return t.Name
		}
	}
	for _, t := range tabs {
		if t.Name == DefaultTab {
			return t.Name
		}
	}
	return tabs[0].Name
}
