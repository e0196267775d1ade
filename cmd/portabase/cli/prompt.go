package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// errNotInteractive is returned when input is needed but stdin is not a terminal.
var errNotInteractive = errors.New("input required but stdin is not a terminal")

// Prompter asks the user for input. Every method returns an error wrapping
// huh.ErrUserAborted when the user cancels.
type Prompter interface {
	Confirm(title string, def bool) (bool, error)
	Input(title, def string, validate func(string) error) (string, error)
	Password(title string) (string, error)
	// Select returns the index of the chosen option.
	Select(title string, options []string, def int) (int, error)
}

// isAccessibleMode reports whether ACCESSIBLE is set, which swaps the TUI
// for plain line prompts that work with screen readers.
func isAccessibleMode() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

// NewAccessibleForm builds a huh form honoring ACCESSIBLE.
func NewAccessibleForm(groups ...*huh.Group) *huh.Form {
	return huh.NewForm(groups...).WithAccessible(isAccessibleMode())
}

// formPrompter prompts on the terminal with huh.
type formPrompter struct{}

func canPrompt() bool {
	return isAccessibleMode() || term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
}

func runForm(field huh.Field) error {
	if !canPrompt() {
		return errNotInteractive
	}
	if err := NewAccessibleForm(huh.NewGroup(field)).Run(); err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	return nil
}

func (formPrompter) Confirm(title string, def bool) (bool, error) {
	answer := def
	err := runForm(huh.NewConfirm().Title(title).Value(&answer))
	return answer, err
}

func (formPrompter) Input(title, def string, validate func(string) error) (string, error) {
	answer := def
	field := huh.NewInput().Title(title).Value(&answer)
	if validate != nil {
		field = field.Validate(validate)
	}
	err := runForm(field)
	return answer, err
}

func (formPrompter) Password(title string) (string, error) {
	var answer string
	err := runForm(huh.NewInput().Title(title).EchoMode(huh.EchoModePassword).Value(&answer))
	return answer, err
}

func (formPrompter) Select(title string, options []string, def int) (int, error) {
	opts := make([]huh.Option[int], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, i)
	}
	answer := def
	err := runForm(huh.NewSelect[int]().Title(title).Options(opts...).Value(&answer))
	return answer, err
}

// validatePort accepts 1-65535.
func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return errors.New("enter a port between 1 and 65535")
	}
	return nil
}

func validateRequired(s string) error {
	if s == "" {
		return errors.New("a value is required")
	}
	return nil
}

// isAbort reports whether err means the user backed out of a prompt.
func isAbort(err error) bool {
	return errors.Is(err, huh.ErrUserAborted)
}
