package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Codes are grouped by category:
//
//	DB001-DB099    database constraints and connectivity
//	VAL001-VAL099  row and mapping validation
//	FILE001-FILE099 file decoding
//	IMP001-IMP099  import sessions and runs
//	RATE001        request throttling
//	ERR000         fallback when nothing matches
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database constraints
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Review the failed rows for duplicates",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate values",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced DSP, station or market does not exist",
			Action:  "Check the DSP and station columns against the directory",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates check constraint",
		msg: UserMessage{
			Message: "A value is not allowed by the directory",
			Action:  "Check title and status values against the template",
			Code:    "DB008",
		},
	},

	// Database connectivity
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Validation
	{
		pattern: "invalid title",
		msg: UserMessage{
			Message: "Title is not one of the allowed values",
			Action:  "Use Owner, Ops, or Dispatch",
			Code:    "VAL001",
		},
	},
	{
		pattern: "identifying information",
		msg: UserMessage{
			Message: "Row has no identifying information",
			Action:  "Add an email, phone, full name, DSP or station to the row",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL003",
		},
	},
	{
		pattern: "column not found",
		msg: UserMessage{
			Message: "Mapped column not found in file",
			Action:  "Verify the column headers match your mapping",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid mapping",
		msg: UserMessage{
			Message: "Column mapping could not be read",
			Action:  "Send the mapping as an object of column to field",
			Code:    "VAL005",
		},
	},

	// File
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "open xlsx",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Save the file as .xlsx or export it as CSV",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file has no header row",
			Action:  "Please upload a file with a header row and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE006",
		},
	},

	// Import
	{
		pattern: "duplicate email",
		msg: UserMessage{
			Message: "A contact with this email already exists",
			Action:  "Choose the create policy to import duplicates anyway",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "Too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The import may have expired. Please upload the file again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "import already started",
		msg: UserMessage{
			Message: "This import has already been started",
			Action:  "Open the report to follow its progress",
			Code:    "IMP004",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try importing a smaller file or check your connection",
			Code:    "IMP006",
		},
	},
	{
		pattern: "import not finished",
		msg: UserMessage{
			Message: "The import has not finished yet",
			Action:  "Wait for the import to complete",
			Code:    "IMP007",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
