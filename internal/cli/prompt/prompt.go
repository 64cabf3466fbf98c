// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"

	"github.com/marmos91/objio/internal/bytesize"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// IsAborted returns true if the error indicates the user aborted (Ctrl+C).
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Input prompts for text input.
func Input(label, defaultValue string) (string, error) {
	return InputWithValidation(label, defaultValue, nil)
}

// InputWithValidation prompts for text input checked by validate.
func InputWithValidation(label, defaultValue string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  defaultValue,
		Validate: validate,
	}

	result, err := prompt.Run()
	return result, wrapError(err)
}

// InputUint prompts for a positive integer.
func InputUint(label string, defaultValue uint64) (uint64, error) {
	result, err := InputWithValidation(label, strconv.FormatUint(defaultValue, 10), func(input string) error {
		n, err := strconv.ParseUint(input, 10, 64)
		if err != nil || n == 0 {
			return fmt.Errorf("must be a positive integer")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	n, _ := strconv.ParseUint(result, 10, 64) // Already validated
	return n, nil
}

// InputByteSize prompts for a size such as "4MiB" or "64Ki".
func InputByteSize(label string, defaultValue bytesize.ByteSize) (bytesize.ByteSize, error) {
	def, _ := defaultValue.MarshalText()
	result, err := InputWithValidation(label, string(def), func(input string) error {
		size, err := bytesize.Parse(input)
		if err != nil {
			return err
		}
		if size == 0 {
			return fmt.Errorf("must be greater than zero")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return bytesize.Parse(result)
}

// InputPort prompts for a network port (1-65535).
func InputPort(label string, defaultValue int) (int, error) {
	result, err := InputWithValidation(label, strconv.Itoa(defaultValue), func(input string) error {
		port, err := strconv.Atoi(input)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("must be a valid port (1-65535)")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	port, _ := strconv.Atoi(result)
	return port, nil
}

// SelectOption represents an item in a selection list.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Select prompts the user to pick one option and returns its value.
func Select(label string, options []SelectOption) (string, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label | white }}",
		Selected: "* {{ .Label | green }}",
	}
	if len(options) > 0 && options[0].Description != "" {
		templates.Details = `
{{ "Description:" | faint }}	{{ .Description }}`
	}

	prompt := promptui.Select{
		Label:     label,
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	i, _, err := prompt.Run()
	if err != nil {
		return "", wrapError(err)
	}
	return options[i].Value, nil
}

// Confirm prompts for yes/no confirmation. Empty input returns defaultYes.
func Confirm(label string, defaultYes bool) (bool, error) {
	suffix := "y/N"
	if defaultYes {
		suffix = "Y/n"
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, suffix),
		IsConfirm: true,
	}

	result, err := prompt.Run()
	switch {
	case err == nil:
		return result == "y" || result == "Y" || result == "yes", nil
	case errors.Is(err, promptui.ErrInterrupt):
		return false, ErrAborted
	case result == "":
		return defaultYes, nil
	case errors.Is(err, promptui.ErrAbort):
		// promptui reports "n" as ErrAbort
		return false, nil
	default:
		return false, err
	}
}

// ConfirmWithForce returns true immediately if force is true,
// otherwise prompts for confirmation.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}
