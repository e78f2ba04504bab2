// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package framer recovers JSON object boundaries from a byte stream where the
// device writes records back to back, sometimes separated by a newline and
// sometimes not separated at all, and where the transport may split a record
// at any byte.
//
// Boundaries are found textually: the first "}\n{" or "}{" in the buffer. A
// fragment that does not parse as an object is dropped. Once no boundary is
// left, the whole remaining buffer is tried as a single object; if it does
// not parse yet it is kept until more bytes arrive.
//
// A Framer is not safe for concurrent use.
package framer

import (
	"bytes"
	"encoding/json"
	"iter"
	"unicode"
)

var (
	sepNewline = []byte("}\n{")
	sepBare    = []byte("}{")
)

// Stats counts what the framer has done since it was created.
type Stats struct {
	Emitted   uint64 `json:"emitted"`
	Dropped   uint64 `json:"dropped"`
	Overflows uint64 `json:"overflows"`
	Buffered  int    `json:"buffered"`
}

// Framer accumulates chunks and yields complete records.
type Framer struct {
	buf       []byte
	maxBuffer int
	stats     Stats
}

// Option configures a Framer.
type Option func(*Framer)

// WithMaxBuffer caps the number of unresolved bytes kept between chunks.
// When a drain leaves more than n bytes the buffer is cleared, and framing
// picks up again at the next record boundary. n <= 0 means no cap, so input
// that never closes grows the buffer without bound.
func WithMaxBuffer(n int) Option {
	return func(f *Framer) { f.maxBuffer = n }
}

// New returns an empty framer.
func New(opts ...Option) *Framer {
	f := &Framer{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Write appends a chunk. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

// Feed appends chunk and returns the records it completes.
func (f *Framer) Feed(chunk []byte) iter.Seq[[]byte] {
	f.Write(chunk)
	return f.Records()
}

// Records lazily yields every record that can be resolved from the buffer.
// Each yielded slice is owned by the caller. Stopping early leaves the rest
// in the buffer; the next call to Records picks up from there.
func (f *Framer) Records() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for {
			cut := boundary(f.buf)
			if cut < 0 {
				break
			}
			left := bytes.TrimSpace(f.buf[:cut])
			// the tail may end inside a string, so only its front is trimmed
			f.buf = bytes.TrimLeftFunc(f.buf[cut:], unicode.IsSpace)

			if !isObject(left) {
				f.stats.Dropped++
				continue
			}
			f.stats.Emitted++
			if !yield(bytes.Clone(left)) {
				return
			}
		}

		whole := bytes.TrimSpace(f.buf)
		if len(whole) > 0 && isObject(whole) {
			rec := bytes.Clone(whole)
			f.buf = f.buf[:0]
			f.stats.Emitted++
			yield(rec)
			return
		}

		f.enforceCap()
	}
}

// Stats returns a copy of the counters.
func (f *Framer) Stats() Stats {
	s := f.stats
	s.Buffered = len(f.buf)
	return s
}

// Reset drops any buffered bytes, e.g. when the upstream connection changes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

func (f *Framer) enforceCap() {
	if f.maxBuffer <= 0 || len(f.buf) <= f.maxBuffer {
		return
	}
	// Cutting to an inner '{' could land on a nested channel object and
	// emit it as a record of its own.
	f.stats.Overflows++
	f.buf = f.buf[:0]
}

// boundary returns the offset just past the '}' of the earliest separator,
// or -1. "}\n{" is preferred when both forms start at the same place.
func boundary(b []byte) int {
	nl := bytes.Index(b, sepNewline)
	bare := bytes.Index(b, sepBare)
	switch {
	case nl < 0 && bare < 0:
		return -1
	case nl < 0:
		return bare + 1
	case bare < 0, nl <= bare:
		return nl + 1
	default:
		return bare + 1
	}
}

func isObject(b []byte) bool {
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}
