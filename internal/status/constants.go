// internal/status/constants.go
package status

// Upstream link health codes.
// These values are exported as metrics and MUST NOT be renumbered.

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy link.
const HealthOK uint16 = 1

// HealthError represents a failing link.
const HealthError uint16 = 2

// HealthStale represents a link that has not produced data within its stale window.
const HealthStale uint16 = 3

// ---- LIMITS ----

// MaxSecondsInError is where seconds_in_error saturates.
const MaxSecondsInError uint16 = 65535

// CodeGeneric is reported for errors that expose no code.
const CodeGeneric uint16 = 1
