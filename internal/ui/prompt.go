package ui

import (
	"bufio"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/vmhop/internal/errors"
)

// Prompter asks the user for input.
type Prompter interface {
	// Secret asks for a value without echoing it.
	Secret(title string) (string, error)
	// Confirm asks a yes/no question.
	Confirm(title string) (bool, error)
}

// HuhPrompter prompts with huh forms.
type HuhPrompter struct{}

// Secret shows a password input. Empty answers are rejected.
func (HuhPrompter) Secret(title string) (string, error) {
	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Validate(requireValue).
				Value(&value),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Prompt cancelled", "")
	}
	return value, nil
}

// Confirm shows a yes/no question defaulting to no.
func (HuhPrompter) Confirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig, "Prompt cancelled", "")
	}
	return ok, nil
}

// ReaderPrompter answers prompts from lines of r, for piped input.
type ReaderPrompter struct {
	r *bufio.Reader
}

// NewReaderPrompter reads answers from r.
func NewReaderPrompter(r io.Reader) *ReaderPrompter {
	return &ReaderPrompter{r: bufio.NewReader(r)}
}

// Secret reads one line.
func (p *ReaderPrompter) Secret(title string) (string, error) {
	line, err := p.line()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Could not read "+strings.ToLower(strings.TrimSuffix(title, ":"))+" from input",
			"Pipe the value on stdin, or run in a terminal to be prompted.")
	}
	if err := requireValue(line); err != nil {
		return "", err
	}
	return line, nil
}

// Confirm reads one line and accepts y or yes.
func (p *ReaderPrompter) Confirm(string) (bool, error) {
	line, err := p.line()
	if err != nil && line == "" {
		return false, nil
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (p *ReaderPrompter) line() (string, error) {
	line, err := p.r.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err == io.EOF && line != "" {
		err = nil
	}
	return line, err
}

func requireValue(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New(errors.ErrConfig, "A value is required", "")
	}
	return nil
}
