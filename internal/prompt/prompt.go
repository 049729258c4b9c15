// Package prompt asks a person at a terminal to pick between candidate dives.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/hyperjump/divetag/internal/matcher"
)

// Terminal is a matcher.Decider that renders candidates to w and reads the
// answer from r, one line at a time. Reads happen on a background goroutine
// so a cancelled context unblocks a pending prompt.
type Terminal struct {
	r *bufio.Reader
	w io.Writer

	start sync.Once
	lines chan line
	// last holds the terminal read error once the reader goroutine has stopped.
	last *line
}

type line struct {
	text string
	err  error
}

// NewTerminal returns a decider reading from r and writing to w.
func NewTerminal(r io.Reader, w io.Writer) *Terminal {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Terminal{r: br, w: w}
}

// Choose renders p on the first attempt and reads a selection. Non-numeric
// input is re-read in place; out-of-range numbers go back to the caller,
// which asks again with a higher Attempt.
func (t *Terminal) Choose(ctx context.Context, p matcher.Prompt) (int, error) {
	if p.Attempt == 0 {
		t.render(p)
	} else {
		fmt.Fprintln(t.w, "Invalid selection. Please try again.")
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fmt.Fprint(t.w, "Select dive (0 to skip): ")
		next, err := t.readLine(ctx)
		if err != nil {
			fmt.Fprintln(t.w)
			return 0, err
		}
		text := strings.TrimSpace(next.text)
		err = next.err
		if err != nil && text == "" {
			fmt.Fprintln(t.w)
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%w: %v", matcher.ErrCancelled, err)
			}
			return 0, err
		}
		n, convErr := strconv.Atoi(text)
		if convErr != nil {
			fmt.Fprintln(t.w, "Invalid input. Please enter a number.")
			if err != nil {
				return 0, fmt.Errorf("%w: %v", matcher.ErrCancelled, err)
			}
			continue
		}
		return n, nil
	}
}

// readLine waits for the next line from the reader goroutine or for ctx.
// A line abandoned by a cancelled wait is delivered to the next call.
func (t *Terminal) readLine(ctx context.Context) (line, error) {
	if t.last != nil {
		return *t.last, nil
	}
	t.start.Do(func() {
		t.lines = make(chan line)
		go func() {
			for {
				text, err := t.r.ReadString('\n')
				t.lines <- line{text: text, err: err}
				if err != nil {
					return
				}
			}
		}()
	})
	select {
	case <-ctx.Done():
		return line{}, ctx.Err()
	case l := <-t.lines:
		if l.err != nil {
			t.last = &line{err: l.err}
		}
		return l, nil
	}
}

func (t *Terminal) render(p matcher.Prompt) {
	fmt.Fprintf(t.w, "\nMultiple dive matches found for: %s\n", p.Path)
	fmt.Fprintf(t.w, "Capture time: %s\n\n", p.CaptureTime.Format(matcher.TimeLayout))
	for i, m := range p.Candidates {
		fmt.Fprintf(t.w, "%d. Dive #%d: %s\n", i+1, m.Dive.Number, m.Dive.SiteName())
		fmt.Fprintf(t.w, "   Time: %s (Duration: %dmin)\n", m.Dive.Start.Format(matcher.TimeLayout), m.Dive.DurationMinutes)
		fmt.Fprintf(t.w, "   GPS: %s\n", matcher.FormatLocation(m.Dive.Site))
		fmt.Fprintf(t.w, "   Confidence: %s (%s from start)\n\n", m.Confidence, matcher.FormatDelta(m.Delta))
	}
	fmt.Fprintln(t.w, "0. Skip this item")
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
