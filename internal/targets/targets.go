// Package targets looks up targets by name.
package targets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tetratelabs/encsel/internal/isa"
	"github.com/tetratelabs/encsel/internal/isa/x86"
	"github.com/tetratelabs/encsel/internal/settings"
)

// ErrUnknownTarget is returned by Lookup for names no target is registered for.
var ErrUnknownTarget = errors.New("unknown target")

// Builder configures the settings of a target before Finish.
type Builder struct {
	name     string
	settings *settings.Builder
	finish   func() isa.TargetISA
	host     func() error
}

// Name returns the name the target was looked up with.
func (b *Builder) Name() string {
	return b.name
}

// Settings returns the settings builder of the target.
func (b *Builder) Settings() *settings.Builder {
	return b.settings
}

// EnableHostFeatures enables the settings for the features of the host CPU.
func (b *Builder) EnableHostFeatures() error {
	return b.host()
}

// Finish returns the target with the current settings.
func (b *Builder) Finish() isa.TargetISA {
	return b.finish()
}

func fromX86(name string, b *x86.Builder) *Builder {
	return &Builder{name: name, settings: b.Settings(), finish: b.Finish, host: b.EnableHostFeatures}
}

var registry = map[string]func(name string) (*Builder, error){
	"i686":   x86Builder,
	"x86_64": x86Builder,
}

// validators check the generated tables of each target family.
var validators = []func() error{x86.Validate}

func x86Builder(name string) (*Builder, error) {
	b, err := x86.NewBuilder(name)
	if err != nil {
		return nil, err
	}
	return fromX86(name, b), nil
}

// Lookup returns a Builder for the named target with default settings.
func Lookup(name string) (*Builder, error) {
	newBuilder, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTarget, name)
	}
	return newBuilder(name)
}

// Native returns a Builder for the host with the features of the host CPU enabled.
func Native() (*Builder, error) {
	b, err := x86.NativeBuilder()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownTarget, err)
	}
	return fromX86(b.Mode().String(), b), nil
}

// Names returns the names of the targets in lexical order.
func Names() []string {
	ret := make([]string, 0, len(registry))
	for n := range registry {
		ret = append(ret, n)
	}
	sort.Strings(ret)
	return ret
}

// Validate checks the generated tables and recipe constraints of every target.
func Validate() error {
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}
