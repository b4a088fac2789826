// Package diag is the diagnostic sink for the frontend. Notices and
// warnings are printed and execution continues; errors abort the current
// elaboration by panicking with an *Error that the pass boundary recovers.
package diag

import (
	"fmt"
	"io"
	"os"
)

// Output receives notices and warnings. Tests may redirect it.
var Output io.Writer = os.Stderr

// Error is a fatal elaboration diagnostic with its source origin.
type Error struct {
	Filename string
	Linenum  int
	Msg      string
}

func (e *Error) Error() string {
	if e.Filename == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s:%d: %s", e.Filename, e.Linenum, e.Msg)
}

// Logf prints a notice.
func Logf(format string, args ...interface{}) {
	fmt.Fprintf(Output, format, args...)
}

// Warningf prints a non-fatal warning with its source origin.
func Warningf(filename string, linenum int, format string, args ...interface{}) {
	fmt.Fprintf(Output, "Warning: %s at %s:%d.\n", fmt.Sprintf(format, args...), filename, linenum)
}

// Errorf aborts the current elaboration. It does not return.
func Errorf(filename string, linenum int, format string, args ...interface{}) {
	panic(&Error{Filename: filename, Linenum: linenum, Msg: fmt.Sprintf(format, args...)})
}

// Assertf reports an internal invariant violation. A failing assert is a
// bug in the frontend, not in the design being elaborated.
func Assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(&Error{Msg: "internal assertion failed: " + fmt.Sprintf(format, args...)})
	}
}

// Recover converts a panicking *Error into an ordinary error return.
// Any other panic value is re-raised.
func Recover(errp *error) {
	switch e := recover().(type) {
	case nil:
	case *Error:
		*errp = e
	default:
		panic(e)
	}
}
