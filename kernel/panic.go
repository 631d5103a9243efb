package kernel

import "swapkernel/kernel/kfmt/early"

// panicFn is invoked by Panic after the fatal error has been reported. Tests
// substitute it with a function that records the call instead of unwinding
// the test binary.
var panicFn = func(err *Error) { panic(err) }

var errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}

// Panic reports the supplied error (if not nil) and then invokes panicFn,
// which aborts the kernel under normal operation. Fatal conditions named by
// the spec — double-free, a misaligned or out-of-range frame, a corrupt LRU
// link, swap-in allocation failure — all route through here.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("*** kernel panic: system halted ***")
	early.Printf("\n-----------------------------------\n")

	panicFn(err)
}
