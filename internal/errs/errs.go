// Package errs implements the error taxonomy from the system's error
// handling design: a small set of kinds that callers classify with
// errors.As instead of comparing strings.
package errs

import "fmt"

// ConfigError signals missing or invalid configuration/credentials.
// Always fatal at startup.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Err)
	}
	return "config: " + e.Msg
}
func (e *ConfigError) Unwrap() error { return e.Err }

// BrokerTransientError wraps a rate-limit, 5xx, or network error that is
// worth retrying with backoff before giving up on the cycle.
type BrokerTransientError struct {
	Op  string
	Err error
}

func (e *BrokerTransientError) Error() string {
	return fmt.Sprintf("broker transient error during %s: %v", e.Op, e.Err)
}
func (e *BrokerTransientError) Unwrap() error { return e.Err }

// BrokerPermanentError wraps a rejected order, unknown symbol, or
// insufficient-buying-power response. Never retried.
type BrokerPermanentError struct {
	Op  string
	Err error
}

func (e *BrokerPermanentError) Error() string {
	return fmt.Sprintf("broker permanent error during %s: %v", e.Op, e.Err)
}
func (e *BrokerPermanentError) Unwrap() error { return e.Err }

// DataError signals malformed or missing bars/quote data for one symbol.
// Non-fatal; the caller skips the symbol.
type DataError struct {
	Symbol string
	Err    error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error for %s: %v", e.Symbol, e.Err)
}
func (e *DataError) Unwrap() error { return e.Err }

// StateError signals a lock timeout, JSON parse failure, or schema
// mismatch on a state file. The caller quarantines the file.
type StateError struct {
	Path string
	Err  error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error on %s: %v", e.Path, e.Err)
}
func (e *StateError) Unwrap() error { return e.Err }

// LifecycleError signals a stale PID file or a crashed child service.
// Handled by the orchestrator.
type LifecycleError struct {
	Service string
	Err     error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("lifecycle error for %s: %v", e.Service, e.Err)
}
func (e *LifecycleError) Unwrap() error { return e.Err }
