package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Interactor asks the operator yes/no questions before risky operations.
type Interactor interface {
	// Confirm asks a question and returns the answer, falling back to
	// defaultYes on empty input.
	Confirm(question string, defaultYes bool) bool
}

// Stdio reads answers from an input stream and writes questions to an
// output stream, normally stdin/stdout.
type Stdio struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStdio creates an interactor over the given streams.
func NewStdio(in io.Reader, out io.Writer) *Stdio {
	return &Stdio{in: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question. Unreadable input takes the default, so a
// closed stdin never blocks a run.
func (s *Stdio) Confirm(question string, defaultYes bool) bool {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	fmt.Fprintf(s.out, "%s [%s]: ", question, hint)

	line, err := s.in.ReadString('\n')
	if err != nil && line == "" {
		return defaultYes
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return defaultYes
	}
}

// NonInteractive answers every question the same way, for --yes flags and
// unattended runs.
type NonInteractive struct {
	Answer bool
}

// Confirm returns the fixed answer without consulting the operator.
func (n NonInteractive) Confirm(string, bool) bool {
	return n.Answer
}
