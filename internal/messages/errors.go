package messages

import (
	"fmt"
	"strings"

	"github.com/pilobster/pilobster/internal/constants"
)

// FormatError formats an error for a chat reply.
func FormatError(err error) string {
	return fmt.Sprintf(constants.MsgErrorFormat, err)
}

// FormatConfigLoadError formats a configuration loading error for the CLI.
func FormatConfigLoadError(err error) string {
	return fmt.Sprintf(constants.MsgConfigLoadError, err)
}

// FormatValidationErrors numbers validation errors under a header. It
// returns "" for no errors.
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(constants.MsgConfigValidationError)
	for i, err := range errs {
		fmt.Fprintf(&b, constants.MsgConfigValidatePrefix, fmt.Sprintf("%d. %v", i+1, err))
	}
	return b.String()
}

// FormatCronErrors lists cron block failures under a warning header.
func FormatCronErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	lines := []string{constants.MsgCronErrorsHeader}
	for _, err := range errs {
		lines = append(lines, fmt.Sprintf(constants.MsgCronErrorLine, err))
	}
	return strings.Join(lines, "\n")
}
