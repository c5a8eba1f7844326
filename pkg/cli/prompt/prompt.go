// Package prompt asks the operator questions on a terminal or any reader.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned when the input closes before an answer is given.
var ErrNoInput = errors.New("no input")

// Prompter reads answers from in and writes questions to out.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

// New creates a prompter. When in is a terminal, secrets are read without echo.
func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTerm = true
	}
	return p
}

// Stdio returns a prompter on stdin and stdout.
func Stdio() *Prompter {
	return New(os.Stdin, os.Stdout)
}

// Interactive reports whether answers come from a terminal.
func (p *Prompter) Interactive() bool {
	return p.isTerm
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. An empty answer yields def; anything
// other than y/yes/n/no asks again.
func (p *Prompter) Confirm(question string, def bool) (bool, error) {
	suffix := "(y/N)"
	if def {
		suffix = "(Y/n)"
	}
	for {
		fmt.Fprintf(p.out, "%s %s: ", question, suffix)
		answer, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}

// ConfirmExact asks a question that only a literal "y" confirms. Any other
// answer, an empty line or closed input is a refusal.
func (p *Prompter) ConfirmExact(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s (y/N): ", question)
	answer, err := p.readLine()
	if errors.Is(err, ErrNoInput) {
		fmt.Fprintln(p.out)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.ToLower(answer) == "y", nil
}

// Choose asks for one of options and returns it. An empty answer picks def.
// Options may be given by name or by 1-based number.
func (p *Prompter) Choose(question string, options []string, def string) (string, error) {
	for {
		fmt.Fprintln(p.out, question)
		for i, o := range options {
			marker := " "
			if o == def {
				marker = "*"
			}
			fmt.Fprintf(p.out, "  %s %d) %s\n", marker, i+1, o)
		}
		fmt.Fprintf(p.out, "Choice [%s]: ", def)

		answer, err := p.readLine()
		if err != nil {
			return "", err
		}
		if answer == "" {
			return def, nil
		}
		for i, o := range options {
			if answer == o || answer == fmt.Sprint(i+1) {
				return o, nil
			}
		}
		fmt.Fprintf(p.out, "Unknown choice %q.\n", answer)
	}
}

// Secret reads a value without echoing it when the input is a terminal.
func (p *Prompter) Secret(question string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", question)
	if !p.isTerm {
		return p.readLine()
	}
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
