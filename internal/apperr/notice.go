package apperr

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is what a view renders in its message dialog.
type Notice struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func Success(message string) Notice {
	return Notice{Title: "Success", Message: message, Severity: SeveritySuccess}
}

// Describe maps any error from this module onto a dialog.
func Describe(err error) Notice {
	if err == nil {
		return Notice{}
	}

	var (
		validation *ValidationError
		missing    *ReferenceNotFoundError
		expired    *SessionExpiredError
		partial    *PartialCommitError
		server     *ServerError
		network    *NetworkError
	)

	switch {
	case errors.As(err, &validation):
		return Notice{Title: "Validation required", Message: validation.Message, Severity: SeverityError}
	case errors.As(err, &missing):
		return Notice{
			Title:    fmt.Sprintf("Unknown %s", missing.Entity),
			Message:  fmt.Sprintf("%q does not exist. Create it first, then save again.", missing.Name),
			Severity: SeverityError,
		}
	case errors.As(err, &expired):
		return Notice{Title: "Session expired", Message: "Your session has expired. Please log in again.", Severity: SeverityWarning}
	case errors.As(err, &partial):
		return Notice{Title: "Partially saved", Message: partial.Error(), Severity: SeverityWarning}
	case errors.Is(err, ErrBusy):
		return Notice{Title: "Please wait", Message: ErrBusy.Error(), Severity: SeverityInfo}
	case errors.As(err, &server):
		msg := server.Detail
		if msg == "" {
			msg = "The server could not process the request."
		}
		return Notice{Title: "Server error", Message: msg, Severity: SeverityError}
	case errors.As(err, &network):
		return Notice{Title: "Connection problem", Message: "Unable to reach the server. Check that it is running.", Severity: SeverityError}
	default:
		return Notice{Title: "Error", Message: err.Error(), Severity: SeverityError}
	}
}
