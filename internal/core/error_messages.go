// # Error Codes Reference
//
// User-facing messages for import errors, each with a code users can quote
// to support.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate unit: a unit with this code already exists
//	        Patterns: "duplicate key", "violates unique"
//	DB002 - Check constraint: a value is outside what the registry accepts
//	        Patterns: "violates check constraint"
//	DB004 - Connection refused        Patterns: "connection refused"
//	DB005 - Connection reset          Patterns: "connection reset"
//	DB006 - Timeout                   Patterns: "timeout"
//	DB007 - Deadlock                  Patterns: "deadlock"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Missing column           Patterns: "missing required column"
//	VAL002 - Required field empty     Patterns: "required field"
//	VAL003 - Invalid number           Patterns: "invalid number"
//	VAL004 - Invalid category         Patterns: "invalid enum"
//	VAL005 - Share out of range       Patterns: "outside 0-100"
//	VAL006 - Too many digits          Patterns: "digits, at most"
//	VAL007 - Co-holder sum            Patterns: "co-holder shares sum"
//	VAL008 - Duplicate in file        Patterns: "duplicate in file"
//	VAL009 - Code already registered  Patterns: "already exists in registry"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large          Patterns: "file too large"
//	FILE002 - Invalid CSV             Patterns: "invalid csv"
//	FILE003 - Invalid workbook        Patterns: "invalid xlsx"
//	FILE004 - No file                 Patterns: "no file provided"
//	FILE005 - Empty file              Patterns: "empty file"
//	FILE006 - Header only             Patterns: "no data rows"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import cancelled         Patterns: "import cancelled"
//	IMP002 - System busy              Patterns: "too many concurrent imports"
//	IMP003 - Session expired          Patterns: "import not found"
//	IMP004 - Request cancelled        Patterns: "context canceled"
//	IMP005 - Request timeout          Patterns: "context deadline exceeded"
//	IMP006 - Registry unavailable     Patterns: "registry lookup"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited            Patterns: "rate limit"
//
// ERR000 is the fallback when nothing matches; check the server log for
// the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns go before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Database (DB001-DB007)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A unit with this code already exists",
			Action:  "Enable update mode or remove the row from the file",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A unit with this code already exists",
			Action:  "Enable update mode or remove the row from the file",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates check constraint",
		msg: UserMessage{
			Message: "A value is outside what the registry accepts",
			Action:  "Review the share and usage columns of the failed rows",
			Code:    "DB002",
		},
	},
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
			Action:  "Import the failed rows again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
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

	// =========================================================================
	// Validation (VAL001-VAL009)
	// =========================================================================
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from the file",
			Action:  "Download the template and compare the column headers",
			Code:    "VAL001",
		},
	},
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Fill in code, holder type, holder name and usage for every row",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use digits with a decimal point or comma, without symbols",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values on the template instructions sheet",
			Code:    "VAL004",
		},
	},
	{
		pattern: "outside 0-100",
		msg: UserMessage{
			Message: "Share must be between 0 and 100",
			Action:  "Correct the share percentage",
			Code:    "VAL005",
		},
	},
	{
		pattern: "digits, at most",
		msg: UserMessage{
			Message: "Share has too many digits",
			Action:  "Use at most 5 digits, with up to 4 decimals",
			Code:    "VAL006",
		},
	},
	{
		pattern: "co-holder shares sum",
		msg: UserMessage{
			Message: "Co-holder shares do not add up to 100",
			Action:  "Adjust the co-holder percentages so they total 100",
			Code:    "VAL007",
		},
	},
	{
		pattern: "duplicate in file",
		msg: UserMessage{
			Message: "The same unit code appears more than once",
			Action:  "Keep a single row per unit code",
			Code:    "VAL008",
		},
	},
	{
		pattern: "already exists in registry",
		msg: UserMessage{
			Message: "Unit code is already registered",
			Action:  "Enable update mode to overwrite existing units",
			Code:    "VAL009",
		},
	},

	// =========================================================================
	// File (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Export the sheet again as CSV (comma or semicolon separated)",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Save the file as .xlsx and try again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or Excel file to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "no data rows",
		msg: UserMessage{
			Message: "The file has headers but no units",
			Action:  "Add at least one unit below the header row",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Import (IMP001-IMP006)
	// =========================================================================
	{
		pattern: "import cancelled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Rows written before cancelling were kept; import the rest when ready",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The import may have expired. Please start a new import",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "IMP005",
		},
	},
	{
		pattern: "registry lookup",
		msg: UserMessage{
			Message: "Could not read the existing registry",
			Action:  "Please try again in a few moments",
			Code:    "IMP006",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
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

// MapError converts a technical error to a user-friendly message. The first
// matching pattern wins; ERR000 is returned when nothing matches.
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

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
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
