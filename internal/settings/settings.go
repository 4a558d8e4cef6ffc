// Package settings holds the boolean ISA flags of a target and the
// predicates derived from them.
//
// A Template describes the flags of one ISA. A Builder created from it
// accumulates explicit values and presets, and Finish freezes them into
// Flags. Flags are immutable and can be shared between goroutines.
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/encsel/internal/constanthash"
)

// ErrUnknownSetting is returned when a setting or preset name is not part of the Template.
var ErrUnknownSetting = errors.New("unknown setting")

// Setting is a boolean flag which can be configured explicitly.
type Setting struct {
	Name string
	// Doc is a one line description shown by tools.
	Doc     string
	Default bool
}

// Predicate is a boolean computed from the other flags when the Builder finishes.
type Predicate struct {
	Name string
	// Eval computes the predicate. has reports the value of settings and of
	// predicates declared earlier in the Template.
	Eval func(has func(name string) bool) bool
}

// Preset enables a group of settings at once, e.g. the features of a CPU generation.
type Preset struct {
	Name    string
	Enables []string
}

// Template describes all the flags of an ISA.
//
// The bit number of a setting is its index in Settings. Predicates are
// numbered after the settings. Encoding tables refer to ISA predicates
// by these bit numbers.
type Template struct {
	Name       string
	Settings   []Setting
	Predicates []Predicate
	Presets    []Preset

	names nameTable
}

type nameKind byte

const (
	nameKindBit nameKind = iota + 1
	nameKindPreset
)

type nameEntry struct {
	name  string
	kind  nameKind
	index int
}

// nameTable implements constanthash.Table for the names of a Template.
type nameTable []nameEntry

func (t nameTable) Len() int { return len(t) }

func (t nameTable) Key(idx int) (string, bool) {
	if t[idx].kind == 0 {
		return "", false
	}
	return t[idx].name, true
}

// NewTemplate validates the given descriptors and builds the name lookup table.
func NewTemplate(name string, s []Setting, p []Predicate, presets []Preset) (*Template, error) {
	t := &Template{Name: name, Settings: s, Predicates: p, Presets: presets}
	var entries []nameEntry
	for i := range s {
		entries = append(entries, nameEntry{name: s[i].Name, kind: nameKindBit, index: i})
	}
	for i := range p {
		entries = append(entries, nameEntry{name: p[i].Name, kind: nameKindBit, index: len(s) + i})
	}
	for i := range presets {
		entries = append(entries, nameEntry{name: presets[i].Name, kind: nameKindPreset, index: i})
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.name == "" {
			return nil, fmt.Errorf("%s: empty name", name)
		}
		if _, ok := seen[e.name]; ok {
			return nil, fmt.Errorf("%s: duplicate name %q", name, e.name)
		}
		seen[e.name] = struct{}{}
	}
	for _, pr := range presets {
		for _, en := range pr.Enables {
			if _, ok := seen[en]; !ok {
				return nil, fmt.Errorf("%s: preset %s enables %w %q", name, pr.Name, ErrUnknownSetting, en)
			}
		}
	}

	slots := constanthash.Generate(len(entries), func(i int) uint32 {
		return constanthash.SimpleHash(entries[i].name)
	})
	t.names = make(nameTable, len(slots))
	for slot, i := range slots {
		if i >= 0 {
			t.names[slot] = entries[i]
		}
	}
	return t, nil
}

// MustNewTemplate is like NewTemplate, but panics on error. It is meant for package level variables.
func MustNewTemplate(name string, s []Setting, p []Predicate, presets []Preset) *Template {
	t, err := NewTemplate(name, s, p, presets)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) lookup(name string) (nameEntry, bool) {
	idx, found := constanthash.Probe[string](t.names, name, constanthash.SimpleHash(name))
	if !found {
		return nameEntry{}, false
	}
	return t.names[idx], true
}

// NumBits returns the number of settings plus predicates.
func (t *Template) NumBits() int {
	return len(t.Settings) + len(t.Predicates)
}

// PredicateNumber returns the bit number of the named setting or predicate.
func (t *Template) PredicateNumber(name string) (int, error) {
	e, ok := t.lookup(name)
	if !ok || e.kind != nameKindBit {
		return 0, fmt.Errorf("%s: %w %q", t.Name, ErrUnknownSetting, name)
	}
	return e.index, nil
}

// MustPredicateNumber is like PredicateNumber, but panics on error.
func (t *Template) MustPredicateNumber(name string) int {
	n, err := t.PredicateNumber(name)
	if err != nil {
		panic(err)
	}
	return n
}

// NewBuilder returns a Builder with every setting at its default.
func (t *Template) NewBuilder() *Builder {
	b := &Builder{template: t, values: make([]bool, len(t.Settings))}
	for i := range t.Settings {
		b.values[i] = t.Settings[i].Default
	}
	return b
}

// Builder accumulates setting values before Finish.
type Builder struct {
	template *Template
	values   []bool
}

// Template returns the Template of this Builder.
func (b *Builder) Template() *Template {
	return b.template
}

// Set sets the value of the named setting. Predicates cannot be set.
func (b *Builder) Set(name string, value bool) error {
	e, ok := b.template.lookup(name)
	if !ok || e.kind != nameKindBit {
		return fmt.Errorf("%s: %w %q", b.template.Name, ErrUnknownSetting, name)
	}
	if e.index >= len(b.values) {
		return fmt.Errorf("%s: %q is a predicate and cannot be set", b.template.Name, name)
	}
	b.values[e.index] = value
	return nil
}

// Enable sets the named setting to true, or applies the named preset.
func (b *Builder) Enable(name string) error {
	e, ok := b.template.lookup(name)
	if ok && e.kind == nameKindPreset {
		for _, s := range b.template.Presets[e.index].Enables {
			if err := b.Enable(s); err != nil {
				return err
			}
		}
		return nil
	}
	return b.Set(name, true)
}

// Finish computes the predicates and returns the frozen Flags.
func (b *Builder) Finish() *Flags {
	t := b.template
	f := &Flags{template: t, bytes: make([]byte, (t.NumBits()+7)/8)}
	for i, v := range b.values {
		f.set(i, v)
	}
	for i := range t.Predicates {
		v := t.Predicates[i].Eval(func(name string) bool {
			e, ok := t.lookup(name)
			if !ok || e.kind != nameKindBit || e.index >= len(t.Settings)+i {
				panic(fmt.Sprintf("BUG: predicate %s refers to %q which is not defined before it", t.Predicates[i].Name, name))
			}
			return f.PredicateView().Test(e.index)
		})
		f.set(len(t.Settings)+i, v)
	}
	return f
}

// Flags are the frozen settings and predicates of an ISA.
type Flags struct {
	template *Template
	bytes    []byte
}

func (f *Flags) set(bit int, v bool) {
	if v {
		f.bytes[bit/8] |= 1 << (bit % 8)
	} else {
		f.bytes[bit/8] &^= 1 << (bit % 8)
	}
}

// Template returns the Template these Flags were built from.
func (f *Flags) Template() *Template {
	return f.template
}

// Has returns the value of the named setting or predicate, and false if unknown.
func (f *Flags) Has(name string) bool {
	e, ok := f.template.lookup(name)
	if !ok || e.kind != nameKindBit {
		return false
	}
	return f.PredicateView().Test(e.index)
}

// PredicateView returns the view used to evaluate ISA predicates.
func (f *Flags) PredicateView() PredicateView {
	return f.bytes
}

// String implements fmt.Stringer, listing every setting and predicate.
func (f *Flags) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", f.template.Name)
	view := f.PredicateView()
	for i := range f.template.Settings {
		fmt.Fprintf(&b, "%s = %t\n", f.template.Settings[i].Name, view.Test(i))
	}
	for i := range f.template.Predicates {
		fmt.Fprintf(&b, "; %s = %t\n", f.template.Predicates[i].Name, view.Test(len(f.template.Settings)+i))
	}
	return b.String()
}

// PredicateView is a read-only bit vector of settings and predicates.
type PredicateView []byte

// Test returns the value of predicate number p.
func (v PredicateView) Test(p int) bool {
	return v[p/8]&(1<<(p%8)) != 0
}
