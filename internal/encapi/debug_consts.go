// Package encapi holds the constants shared by the encoding packages. They
// are defined in one place so that debugging can be toggled without hunting
// for the places which log.
package encapi

// ----- Debug logging -----
// These consts must be disabled by default. Enable them only when debugging.

const (
	// EncodingsLoggingEnabled prints every decoded encoding list word to stdout.
	EncodingsLoggingEnabled = false
	// RelaxationLoggingEnabled prints every branch relaxation round to stdout.
	RelaxationLoggingEnabled = false
)

// ----- Validations -----
// These consts must be enabled by default until generated tables have been
// fuzzed for long enough. Disabling them removes the checks from the binary.

const (
	// EncodingsValidationEnabled checks Encodings usage, e.g. reading the
	// legalize action before the iterator is exhausted.
	EncodingsValidationEnabled = true
	// TablesValidationEnabled validates generated tables when a target initializes.
	TablesValidationEnabled = true
)
