// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package reject models the cause of a rejected delivery. A Reason is built
// implicitly from an error value or a plain string and travels inside the
// stored message document.
package reject

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// Frame is a single entry of a rejection trace.
type Frame struct {
	// Source is the raw frame text the entry was built from.
	Source string `json:"source,omitempty" xml:"source,omitempty"`
	// Class is the receiver type for method frames.
	Class string `json:"class,omitempty" xml:"class,omitempty"`
	// Namespace is the package path the frame belongs to.
	Namespace string `json:"namespace,omitempty" xml:"namespace,omitempty"`
	// Method is the function or method name. Entries without one are dropped.
	Method string `json:"method" xml:"method"`
	// File is the source file, when known.
	File string `json:"file,omitempty" xml:"file,omitempty"`
	// Line is the source line, when known.
	Line int `json:"line,omitempty" xml:"line,omitempty"`
}

// Reason captures why a delivery was rejected: the failure type, its
// message, the recursively wrapped cause and an ordered trace.
type Reason struct {
	Type    string  `json:"type,omitempty" xml:"type,omitempty"`
	Message string  `json:"message" xml:"message"`
	Inner   *Reason `json:"inner,omitempty" xml:"inner,omitempty"`
	Trace   []Frame `json:"trace,omitempty" xml:"trace>frame,omitempty"`
}

// traceLine matches one trimmed line of a textual trace. Lines that do not
// yield a method are dropped.
var traceLine = regexp.MustCompile(`^at\s+(.+?)(?:\s+in\s+(.+):line\s+(\d+))?$`)

// New builds a Reason carrying only a message.
func New(message string) *Reason {
	return &Reason{Message: message}
}

// Newf builds a Reason from a format string.
func Newf(format string, args ...any) *Reason {
	return &Reason{Message: fmt.Sprintf(format, args...)}
}

// FromError builds a Reason from a failure value. The dynamic type and
// message are recorded, wrapped errors become the Inner chain, and the
// trace is captured from the caller's stack.
func FromError(err error) *Reason {
	if err == nil {
		return nil
	}

	r := shallow(err)
	r.Trace = capture(2)

	return r
}

// shallow converts the error chain without capturing a trace.
func shallow(err error) *Reason {
	r := &Reason{
		Type:    fmt.Sprintf("%T", err),
		Message: err.Error(),
	}

	if inner := errors.Unwrap(err); inner != nil {
		r.Inner = shallow(inner)
	}

	return r
}

// capture records the current goroutine stack, skipping the given number of
// frames plus the runtime internals.
func capture(skip int) []Frame {
	const depth = 32

	pcs := make([]uintptr, depth)

	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)

	for {
		fr, more := frames.Next()
		if fr.Function != "" {
			namespace, class, method := splitFunction(fr.Function)

			out = append(out, Frame{
				Source:    fr.Function,
				Class:     class,
				Namespace: namespace,
				Method:    method,
				File:      fr.File,
				Line:      fr.Line,
			})
		}

		if !more {
			break
		}
	}

	return out
}

// splitFunction breaks a runtime function name of the form
// "pkg/path.(*Type).Method" into its namespace, receiver type and method.
// The "[...]" the runtime prints for generic instantiations is dropped.
func splitFunction(fn string) (namespace, class, method string) {
	slash := strings.LastIndex(fn, "/")

	dot := strings.Index(fn[slash+1:], ".")
	if dot < 0 {
		return "", "", fn
	}

	namespace = fn[:slash+1+dot]
	rest := strings.ReplaceAll(fn[slash+1+dot+1:], "[...]", "")

	if recv, m, ok := strings.Cut(rest, "."); ok {
		class = strings.Trim(recv, "(*)")
		method = m

		return namespace, class, method
	}

	return namespace, "", rest
}

// ParseTrace converts a textual trace into frames, one per trimmed line.
// Entries that do not yield a method are dropped.
func ParseTrace(text string) []Frame {
	var out []Frame

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		groups := traceLine.FindStringSubmatch(line)
		if groups == nil || groups[1] == "" {
			continue
		}

		frame := Frame{
			Source: line,
			Method: groups[1],
			File:   groups[2],
		}

		if groups[3] != "" {
			frame.Line, _ = strconv.Atoi(groups[3])
		}

		out = append(out, frame)
	}

	return out
}

// ClearTrace drops the trace of this reason and, recursively, of every
// inner reason. Used when transporting the reason in a constrained medium.
func (r *Reason) ClearTrace() {
	if r == nil {
		return
	}

	r.Trace = nil
	r.Inner.ClearTrace()
}

// String renders the reason chain as "type: message" joined by arrows.
func (r *Reason) String() string {
	if r == nil {
		return ""
	}

	var b strings.Builder

	for cur := r; cur != nil; cur = cur.Inner {
		if cur != r {
			b.WriteString(" <- ")
		}

		if cur.Type != "" {
			b.WriteString(cur.Type)
			b.WriteString(": ")
		}

		b.WriteString(cur.Message)
	}

	return b.String()
}
