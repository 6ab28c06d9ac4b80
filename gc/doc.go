// Package gc implements a generic tracing garbage collector.
//
// The allocator owns a heap of boxed values and reclaims them with a
// mark/sweep cycle. Any value type can participate by implementing
// Traceable. The collector is self-contained and has no dependency on
// the virtual machine; the two can be used independently.
package gc
