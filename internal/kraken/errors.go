package kraken

import "fmt"

// FetchError covers network, auth, and parse failures on read paths.
// The tick loop treats it as recoverable and skips the tick.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("kraken fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// OrderError covers failed order placement. State must be left untouched.
type OrderError struct {
	Op  string
	Err error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("kraken order %s: %v", e.Op, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }
