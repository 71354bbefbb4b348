package core

// error_messages.go maps technical errors to user-facing messages.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	          Action: Split the file or remove unused columns
//	FILE002 - Unsupported format: Only .csv and .xlsx files are accepted
//	          Action: Save the file as CSV or Excel workbook
//	FILE003 - Parse error: The file could not be read
//	          Action: Check that the file is a valid CSV or workbook
//	FILE004 - No file: No file was selected
//	          Action: Please select a file to upload
//	FILE005 - Empty file: The uploaded file is empty
//	          Action: Upload a file with a header row and at least one data row
//
// # Session Errors (SES001-SES099)
//
//	SES001 - No active session: No table has been uploaded yet
//	         Action: Upload a file to start cleaning
//	SES002 - Session data corrupted: The stored table could not be read
//	         Action: Upload the file again
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Column not found: The column does not exist in the table
//	COL002 - Invalid columns: A non-empty list of columns is required
//
// # Operation Errors (OP001-OP099)
//
//	OP001 - Invalid strategy
//	OP002 - Invalid operator
//	OP003 - Operator not supported for the column type
//	OP004 - Value could not be converted to the column type
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many uploads in progress
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check application logs for the technical error.
//
// # Matching
//
// Sentinel errors are matched with errors.Is first; the remaining patterns
// are matched case-insensitively against the error text. The first match
// wins, so specific entries come before general ones.

import (
	"context"
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern maps either a sentinel error or a text pattern to a message.
type errorPattern struct {
	target  error
	pattern string
	msg     UserMessage
}

func (ep errorPattern) matches(err error, lower string) bool {
	if ep.target != nil && errors.Is(err, ep.target) {
		return true
	}
	return ep.pattern != "" && strings.Contains(lower, ep.pattern)
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE001-FILE005)
	// =========================================================================
	{
		target:  ErrFileTooLarge,
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file or remove unused columns",
			Code:    "FILE001",
		},
	},
	{
		target: ErrUnsupportedFormat,
		msg: UserMessage{
			Message: "Unsupported file format",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE002",
		},
	},
	{
		target: ErrParse,
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Check that the file is a valid CSV or Excel workbook",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		target: ErrEmptyFile,
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file with a header row and at least one data row",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Session Errors (SES001-SES002)
	// =========================================================================
	{
		target: ErrNoActiveSession,
		msg: UserMessage{
			Message: "No data loaded",
			Action:  "Upload a file to start cleaning",
			Code:    "SES001",
		},
	},
	{
		target: ErrSerialization,
		msg: UserMessage{
			Message: "The stored table could not be read and was cleared",
			Action:  "Upload the file again",
			Code:    "SES002",
		},
	},

	// =========================================================================
	// Column Errors (COL001-COL002)
	// =========================================================================
	{
		target: ErrColumnNotFound,
		msg: UserMessage{
			Message: "Column not found",
			Action:  "Check the column name against the table headers",
			Code:    "COL001",
		},
	},
	{
		target: ErrInvalidColumns,
		msg: UserMessage{
			Message: "A non-empty list of columns is required",
			Action:  "Select at least one column",
			Code:    "COL002",
		},
	},

	// =========================================================================
	// Operation Errors (OP001-OP004)
	// =========================================================================
	{
		target: ErrInvalidStrategy,
		msg: UserMessage{
			Message: "Invalid strategy",
			Action:  "Choose one of the listed strategies",
			Code:    "OP001",
		},
	},
	{
		target: ErrInvalidOperator,
		msg: UserMessage{
			Message: "Invalid operator",
			Action:  "Use one of >, >=, <, <=, ==, !=, contains, not_contains",
			Code:    "OP002",
		},
	},
	{
		target: ErrUnsupportedOperatorForType,
		msg: UserMessage{
			Message: "This operator cannot be used on this column type",
			Action:  "Use contains and not_contains on text columns only",
			Code:    "OP003",
		},
	},
	{
		target: ErrTypeCoercion,
		msg: UserMessage{
			Message: "The value does not match the column type",
			Action:  "Enter a value of the column's type, for example a number",
			Code:    "OP004",
		},
	},

	// =========================================================================
	// Request Errors (VAL001)
	// =========================================================================
	{
		target: ErrInvalidRequest,
		msg: UserMessage{
			Message: "The request is missing a field or has an invalid one",
			Action:  "Check the request body and try again",
			Code:    "VAL001",
		},
	},

	// =========================================================================
	// Upload Errors (UPL002-UPL005)
	// =========================================================================
	{
		target: ErrTooManyUploads,
		msg: UserMessage{
			Message: "Too many uploads in progress",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		target:  context.Canceled,
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		target:  context.DeadlineExceeded,
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
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

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If nothing matches, the ERR000 fallback is returned.
//
// Example:
//
//	msg := MapError(fmt.Errorf("%w: %q", ErrColumnNotFound, "age"))
//	// msg.Code == "COL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	lower := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if ep.matches(err, lower) {
			return ep.msg
		}
	}
	return defaultMessage
}
