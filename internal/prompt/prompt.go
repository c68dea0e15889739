// Package prompt provides the interactive primitives the resolution engine
// uses to break ties: a numbered-choice menu and a line reader. Both are
// blocking with no timeout; cancellation is the user interrupting the whole
// process. The engine's matching logic only sees the Chooser and Reader
// interfaces, so tests script the interaction instead of driving a terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

// Choice is one selectable option: a label, the value it stands for, and
// optional help text shown alongside.
type Choice struct {
	Label string
	Value any
	Help  string
}

// Chooser asks the user to pick one (or several) of the given choices.
// The choice order is caller-supplied and preserved exactly as given.
// Returned indices refer to that order.
type Chooser interface {
	Choose(caption, message string, choices []Choice, defaults []int, multi bool) ([]int, error)
}

// Reader reads a single line of user input in response to a prompt.
type Reader interface {
	ReadLine(promptText string) (string, error)
}

// ErrNotInteractive is returned when a prompt would block a session that has
// no terminal attached.
var ErrNotInteractive = fmt.Errorf("session is not interactive")

// Console renders prompts to Out and reads answers from In. When In is a
// file, non-TTY sessions fail fast with ErrNotInteractive instead of hanging
// on a read that can never be answered.
type Console struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// NewConsole creates a console prompter on stdin/stdout.
func NewConsole() *Console {
	return &Console{In: os.Stdin, Out: os.Stdout}
}

func (c *Console) interactive() bool {
	f, ok := c.In.(*os.File)
	if !ok {
		// Non-file inputs (pipes built in tests, buffers) are always allowed.
		return true
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) readLine() (string, error) {
	if c.reader == nil {
		c.reader = bufio.NewReader(c.In)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadLine prints promptText and returns one trimmed line of input.
func (c *Console) ReadLine(promptText string) (string, error) {
	if !c.interactive() {
		return "", ErrNotInteractive
	}
	fmt.Fprint(c.Out, promptText)
	return c.readLine()
}

// Choose displays a numbered menu and reads the selection. Empty input picks
// the defaults. Multi-select accepts comma- or space-separated numbers.
// Invalid input re-prompts until the user answers or input ends.
func (c *Console) Choose(caption, message string, choices []Choice, defaults []int, multi bool) ([]int, error) {
	if !c.interactive() {
		return nil, ErrNotInteractive
	}
	if caption != "" {
		fmt.Fprintln(c.Out, caption)
	}
	if message != "" {
		fmt.Fprintln(c.Out, message)
	}
	for i, ch := range choices {
		marker := " "
		if containsIndex(defaults, i) {
			marker = "*"
		}
		if ch.Help != "" {
			fmt.Fprintf(c.Out, "%s[%d] %s - %s\n", marker, i, ch.Label, ch.Help)
		} else {
			fmt.Fprintf(c.Out, "%s[%d] %s\n", marker, i, ch.Label)
		}
	}
	for {
		fmt.Fprint(c.Out, "> ")
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if len(defaults) > 0 {
				return defaults, nil
			}
			continue
		}
		picked, ok := parseSelection(line, len(choices), multi)
		if ok {
			return picked, nil
		}
		fmt.Fprintf(c.Out, "enter a number between 0 and %d\n", len(choices)-1)
	}
}

func parseSelection(line string, n int, multi bool) ([]int, bool) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) == 0 || (!multi && len(fields) > 1) {
		return nil, false
	}
	var picked []int
	for _, f := range fields {
		idx, err := strconv.Atoi(f)
		if err != nil || idx < 0 || idx >= n {
			return nil, false
		}
		picked = append(picked, idx)
	}
	return picked, true
}

func containsIndex(indices []int, i int) bool {
	for _, idx := range indices {
		if idx == i {
			return true
		}
	}
	return false
}

// Script is a pre-programmed Chooser/Reader for tests and batch runs: each
// Choose call consumes the next answer, each ReadLine the next line.
type Script struct {
	Answers [][]int
	Lines   []string

	// Prompts records every prompt text seen, for assertions.
	Prompts []string

	answerIdx int
	lineIdx   int
}

func (s *Script) Choose(caption, message string, choices []Choice, defaults []int, multi bool) ([]int, error) {
	s.Prompts = append(s.Prompts, caption)
	if s.answerIdx >= len(s.Answers) {
		if len(defaults) > 0 {
			return defaults, nil
		}
		return nil, io.EOF
	}
	a := s.Answers[s.answerIdx]
	s.answerIdx++
	return a, nil
}

func (s *Script) ReadLine(promptText string) (string, error) {
	s.Prompts = append(s.Prompts, promptText)
	if s.lineIdx >= len(s.Lines) {
		return "", io.EOF
	}
	line := s.Lines[s.lineIdx]
	s.lineIdx++
	return line, nil
}
