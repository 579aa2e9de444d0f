// Package prompt asks the operator questions on a terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

var ErrNoInput = errors.New("no input")

// Terminal asks questions from a single goroutine.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool

	// Input is read by one goroutine so a waiting question can be
	// abandoned. readErr is set before lines is closed.
	lines   chan string
	readErr error
}

func New(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
		t.tty = true
	}
	return t
}

// Interactive reports whether input comes from a terminal.
func (t *Terminal) Interactive() bool {
	return t.tty
}

// Confirm asks a yes/no question. An empty answer means yes; end of input
// means no.
func (t *Terminal) Confirm(question string) bool {
	return t.confirm(context.Background(), question, true)
}

// ConfirmContext is Confirm that answers no as soon as ctx is done.
func (t *Terminal) ConfirmContext(ctx context.Context, question string) bool {
	return t.confirm(ctx, question, true)
}

// ConfirmDefault is Confirm with a chosen answer for empty input.
func (t *Terminal) ConfirmDefault(question string, def bool) bool {
	return t.confirm(context.Background(), question, def)
}

func (t *Terminal) confirm(ctx context.Context, question string, def bool) bool {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		fmt.Fprintf(t.out, "%s %s ", question, hint)
		line, err := t.readLineContext(ctx)
		if err != nil {
			fmt.Fprintln(t.out)
			return false
		}
		switch strings.ToLower(line) {
		case "":
			return def
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		fmt.Fprintln(t.out, "Please answer y or n.")
	}
}

// Ask returns the answer to question, or def when the answer is empty.
func (t *Terminal) Ask(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(t.out, "%s [%s] ", question, def)
	} else {
		fmt.Fprintf(t.out, "%s ", question)
	}
	line, err := t.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

// Secret reads an answer without echoing it when input is a terminal.
func (t *Terminal) Secret(question string) (string, error) {
	fmt.Fprintf(t.out, "%s ", question)
	if !t.tty || t.lines != nil {
		return t.readLine()
	}
	b, err := term.ReadPassword(t.fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Select lists items and returns the indices the operator picked.
func (t *Terminal) Select(question string, items []string) ([]int, error) {
	for i, item := range items {
		fmt.Fprintf(t.out, "  %2d) %s\n", i+1, item)
	}
	for {
		fmt.Fprintf(t.out, "%s (numbers, ranges like 2-4, 'all', or empty for none) ", question)
		line, err := t.readLine()
		if err != nil {
			return nil, err
		}
		picked, err := ParseSelection(line, len(items))
		if err == nil {
			return picked, nil
		}
		fmt.Fprintln(t.out, err)
	}
}

func (t *Terminal) readLine() (string, error) {
	return t.readLineContext(context.Background())
}

func (t *Terminal) readLineContext(ctx context.Context) (string, error) {
	if t.lines == nil {
		t.lines = make(chan string)
		go t.readLoop()
	}
	select {
	case line, ok := <-t.lines:
		if !ok {
			return "", t.readErr
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *Terminal) readLoop() {
	defer close(t.lines)
	for {
		line, err := t.in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			if errors.Is(err, io.EOF) {
				err = ErrNoInput
			}
			t.readErr = err
			return
		}
		t.lines <- strings.TrimSpace(line)
		if err != nil {
			t.readErr = ErrNoInput
			return
		}
	}
}

// ParseSelection parses answers like "1 3,5-7" or "all" into sorted zero
// based indices below n.
func ParseSelection(s string, n int) ([]int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return nil, nil
	}
	if s == "all" || s == "*" {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	seen := make(map[int]bool)
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	for _, f := range fields {
		lo, hi, isRange := strings.Cut(f, "-")
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", f)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("invalid selection %q", f)
			}
		}
		if from < 1 || to > n || from > to {
			return nil, fmt.Errorf("selection %q out of range 1-%d", f, n)
		}
		for i := from; i <= to; i++ {
			seen[i-1] = true
		}
	}

	picked := make([]int, 0, len(seen))
	for i := range seen {
		picked = append(picked, i)
	}
	sort.Ints(picked)
	return picked, nil
}
