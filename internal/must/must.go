// Package must provides the agent's invariant-violation policy: programmer
// bugs (negative dirty counts, impossible state transitions) abort the
// process rather than being handled as errors. Transient host-API failures
// never use this package — those are traced and skipped for the tick.
package must

import "fmt"

// Assertf panics if cond is false. Use only for invariants that indicate a
// bug in this program, never for conditions an external actor can trigger.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}

// NonNegative panics if n is negative, naming the field for the panic message.
func NonNegative(name string, n int) int {
	Assertf(n >= 0, "%s must be non-negative, got %d", name, n)
	return n
}
