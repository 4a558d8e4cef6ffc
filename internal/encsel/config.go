package encsel

import (
	"runtime"

	"github.com/tetratelabs/encsel/internal/logging"
)

// Config controls encoding selection, with the default implementation as NewConfig.
//
// Config is immutable: each With method returns a new instance including the
// corresponding change.
type Config struct {
	workers          int
	logger           *logging.Logger
	branchRelaxation bool
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &Config{
	workers:          runtime.GOMAXPROCS(0),
	branchRelaxation: true,
}

// NewConfig returns a Config with branch relaxation enabled, no logging, and
// as many workers as GOMAXPROCS.
func NewConfig() *Config {
	return defaultConfig.clone()
}

// clone makes a deep copy of this config.
func (c *Config) clone() *Config {
	ret := *c
	return &ret
}

// WithWorkers sets the number of functions SelectAll processes concurrently.
// Values below one select GOMAXPROCS.
func (c *Config) WithWorkers(workers int) *Config {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	ret := c.clone()
	ret.workers = workers
	return ret
}

// WithLogger sets the logger of selection events. nil disables logging.
func (c *Config) WithLogger(logger *logging.Logger) *Config {
	ret := c.clone()
	ret.logger = logger
	return ret
}

// WithBranchRelaxation enables RelaxBranches after selection. This defaults to true.
//
// When disabled, branches keep the first legal encoding even if their
// destination is out of range.
func (c *Config) WithBranchRelaxation(enabled bool) *Config {
	ret := c.clone()
	ret.branchRelaxation = enabled
	return ret
}
