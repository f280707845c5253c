// Package native holds the Go stand-ins for the few JDK classes game code
// touches before the loader hands control to it.
package native

import (
	"fmt"
	"io"
	"strconv"
)

// PrintStream represents a java.io.PrintStream.
type PrintStream struct {
	Writer io.Writer
}

// Println prints a value followed by a newline.
func (ps *PrintStream) Println(args ...any) {
	if len(args) == 0 {
		fmt.Fprintln(ps.Writer)
		return
	}
	fmt.Fprintln(ps.Writer, Format(args[0]))
}

// Print prints a value without a trailing newline.
func (ps *PrintStream) Print(v any) {
	fmt.Fprint(ps.Writer, Format(v))
}

// Format renders v the way String.valueOf would.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case *NativeInteger:
		if x == nil {
			return "null"
		}
		return strconv.FormatInt(int64(x.Value), 10)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
