package notify

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// ListenerPanicError describes a panic raised by a listener during fan-out.
// Under PanicPropagate it is the value re-panicked to the caller.
type ListenerPanicError struct {
	// Path of the source whose listeners were being notified, if known.
	Path string
	// ListenerID is the identity tag of the panicking listener.
	ListenerID string
	// Value is the value passed to panic().
	Value any
	// StackTrace is the call stack captured at recovery.
	StackTrace string
}

func (e *ListenerPanicError) Error() string {
	var b strings.Builder
	b.WriteString("listener panic")
	if e.Path != "" {
		b.WriteString(" on ")
		b.WriteString(e.Path)
	}
	if e.ListenerID != "" {
		b.WriteString(" (listener ")
		b.WriteString(e.ListenerID)
		b.WriteString(")")
	}
	return fmt.Sprintf("%s: %v", b.String(), e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *ListenerPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsListenerPanic reports whether v (a recovered value or an error) is or wraps a
// *ListenerPanicError.
func IsListenerPanic(v any) bool {
	if err, ok := v.(error); ok {
		var target *ListenerPanicError
		return errors.As(err, &target)
	}
	return false
}

// captureStack returns the current call stack, skipping runtime frames and
// captureStack itself.
func captureStack() string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		sb.WriteString(frame.Function)
		sb.WriteString("\n\t")
		sb.WriteString(frame.File)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(frame.Line))
		sb.WriteString("\n")
		if !more {
			break
		}
	}
	return sb.String()
}
