// Package streams provides IOStreams adapters for fileconf user-facing
// messages: defaults-reconciliation traces, key migrations, and file
// creation notices. Ready-made implementations write to stdio, discard
// output, capture it in memory buffers, or forward each message to a
// structured slog logger.
package streams

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// IOStreams is the minimal contract for user-facing streams. Any type with
// these three methods can be passed to Handle.SetStreams or
// fileconf.WithStreams, regardless of the package it is defined in.
type IOStreams interface {
	In() io.Reader
	Out() io.Writer
	ErrOut() io.Writer
}

// Basic forwards writes to the supplied targets. Construct values with
// Default, Writers, Discard, or Slog.
type Basic struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (s Basic) In() io.Reader     { return s.in }
func (s Basic) Out() io.Writer    { return s.out }
func (s Basic) ErrOut() io.Writer { return s.errOut }

// Default returns a Basic backed by os.Stdin, os.Stdout and os.Stderr.
func Default() Basic {
	return Basic{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
}

// Writers returns a Basic that writes Out to out and ErrOut to err. In is
// set to os.Stdin.
func Writers(out, err io.Writer) Basic {
	return Basic{in: os.Stdin, out: out, errOut: err}
}

// Discard returns a Basic that drops all output, for silent operation.
func Discard() Basic {
	return Writers(io.Discard, io.Discard)
}

// Buffered captures output into in-memory buffers so messages can be
// inspected or flushed after the fact. Writes are mutex-protected, so a
// single Buffered value may serve handles used from multiple goroutines.
type Buffered struct {
	in  io.Reader
	out lockedBuffer
	err lockedBuffer
}

// Buffers returns a new Buffered with empty Out and ErrOut buffers.
func Buffers() *Buffered {
	return &Buffered{in: os.Stdin}
}

func (b *Buffered) In() io.Reader     { return b.in }
func (b *Buffered) Out() io.Writer    { return &b.out }
func (b *Buffered) ErrOut() io.Writer { return &b.err }

// Strings returns the current contents of the Out and ErrOut buffers.
func (b *Buffered) Strings() (out, err string) {
	return b.out.String(), b.err.String()
}

// Reset clears both buffers.
func (b *Buffered) Reset() {
	b.out.Reset()
	b.err.Reset()
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func (l *lockedBuffer) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.b.Reset()
}

// slogWriter adapts a slog.Logger to io.Writer, one log record per Write.
type slogWriter struct {
	l     *slog.Logger
	level slog.Level
}

func (w slogWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	w.l.Log(context.Background(), w.level, string(p))
	return n, nil
}

// Slog returns a Basic that writes messages to a slog.Logger: Out at the
// info level, ErrOut at the err level.
func Slog(l *slog.Logger, info, err slog.Level) Basic {
	return Basic{
		in:     os.Stdin,
		out:    slogWriter{l: l, level: info},
		errOut: slogWriter{l: l, level: err},
	}
}
