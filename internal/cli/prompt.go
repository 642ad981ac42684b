package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// prompter reads answers line by line from the terminal. Lines are read on
// a separate goroutine so a command can wait for Enter and a timer at once.
type prompter struct {
	out   io.Writer
	lines chan string
	done  chan struct{}
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{
		out:   out,
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case p.lines <- strings.TrimSpace(scanner.Text()):
			case <-p.done:
				return
			}
		}
	}()
	return p
}

// Ask prints label and waits for one line. ok is false once input is
// exhausted.
func (p *prompter) Ask(label string) (string, bool) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, ok := <-p.lines
	return line, ok
}

// Lines exposes raw input for select loops.
func (p *prompter) Lines() <-chan string {
	return p.lines
}

// Close stops the reader goroutine once it next delivers a line.
func (p *prompter) Close() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}
