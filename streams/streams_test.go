package streams

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestWriters(t *testing.T) {
	var out, errOut bytes.Buffer
	s := Writers(&out, &errOut)

	fmt.Fprint(s.Out(), "to out")
	fmt.Fprint(s.ErrOut(), "to err")

	if got := out.String(); got != "to out" {
		t.Errorf("Out captured %q, want to out", got)
	}
	if got := errOut.String(); got != "to err" {
		t.Errorf("ErrOut captured %q, want to err", got)
	}
	if s.In() == nil {
		t.Error("In() = nil")
	}
}

func TestDiscard(t *testing.T) {
	s := Discard()
	if _, err := fmt.Fprint(s.Out(), "dropped"); err != nil {
		t.Errorf("write to discarded Out: %v", err)
	}
	if _, err := fmt.Fprint(s.ErrOut(), "dropped"); err != nil {
		t.Errorf("write to discarded ErrOut: %v", err)
	}
}

func TestBuffered(t *testing.T) {
	b := Buffers()

	fmt.Fprintln(b.Out(), "first")
	fmt.Fprintln(b.Out(), "second")
	fmt.Fprintln(b.ErrOut(), "oops")

	out, errOut := b.Strings()
	if out != "first\nsecond\n" {
		t.Errorf("out = %q", out)
	}
	if errOut != "oops\n" {
		t.Errorf("err = %q", errOut)
	}

	b.Reset()
	out, errOut = b.Strings()
	if out != "" || errOut != "" {
		t.Errorf("after Reset: out=%q err=%q, want both empty", out, errOut)
	}
}

func TestBufferedConcurrentWrites(t *testing.T) {
	b := Buffers()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				fmt.Fprintln(b.Out(), "line")
			}
		}()
	}
	wg.Wait()

	out, _ := b.Strings()
	if got, want := strings.Count(out, "line\n"), 400; got != want {
		t.Errorf("captured %d lines, want %d", got, want)
	}
}

func TestSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := Slog(logger, slog.LevelInfo, slog.LevelError)

	fmt.Fprintln(s.Out(), "informational message")
	fmt.Fprintln(s.ErrOut(), "error message")

	logged := buf.String()
	if !strings.Contains(logged, "informational message") || !strings.Contains(logged, "level=INFO") {
		t.Errorf("info record missing or mislabeled: %q", logged)
	}
	if !strings.Contains(logged, "error message") || !strings.Contains(logged, "level=ERROR") {
		t.Errorf("error record missing or mislabeled: %q", logged)
	}
}
