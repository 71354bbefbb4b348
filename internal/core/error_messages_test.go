package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "file too large sentinel",
			err:         fmt.Errorf("%w: 200MB exceeds limit", ErrFileTooLarge),
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum upload size",
		},
		{
			name:        "http body limit text",
			err:         errors.New("http: request body too large"),
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum upload size",
		},
		{
			name:        "unsupported format",
			err:         fmt.Errorf("%w: %q", ErrUnsupportedFormat, ".txt"),
			wantCode:    "FILE002",
			wantMessage: "Unsupported file format",
		},
		{
			name:        "parse error",
			err:         fmt.Errorf("%w: line 3 has 4 fields, header has 2", ErrParse),
			wantCode:    "FILE003",
			wantMessage: "The file could not be read",
		},
		{
			name:        "no file",
			err:         errors.New("No file provided."),
			wantCode:    "FILE004",
			wantMessage: "No file was selected",
		},
		{
			name:        "empty file",
			err:         fmt.Errorf("%w: no data rows found", ErrEmptyFile),
			wantCode:    "FILE005",
			wantMessage: "The uploaded file is empty",
		},
		{
			name:        "no session",
			err:         ErrNoActiveSession,
			wantCode:    "SES001",
			wantMessage: "No data loaded",
		},
		{
			name:        "corrupt session",
			err:         fmt.Errorf("%w: decode: unexpected end of JSON input", ErrSerialization),
			wantCode:    "SES002",
			wantMessage: "The stored table could not be read and was cleared",
		},
		{
			name:        "column not found",
			err:         fmt.Errorf("%w: %q", ErrColumnNotFound, "age"),
			wantCode:    "COL001",
			wantMessage: "Column not found",
		},
		{
			name:        "coercion",
			err:         fmt.Errorf("%w: %q is not a number", ErrTypeCoercion, "abc"),
			wantCode:    "OP004",
			wantMessage: "The value does not match the column type",
		},
		{
			name:        "invalid request body",
			err:         fmt.Errorf("%w: column_name is required", ErrInvalidRequest),
			wantCode:    "VAL001",
			wantMessage: "The request is missing a field or has an invalid one",
		},
		{
			name:        "busy",
			err:         ErrTooManyUploads,
			wantCode:    "UPL002",
			wantMessage: "Too many uploads in progress",
		},
		{
			name:        "deadline",
			err:         fmt.Errorf("acquire session: %w", context.DeadlineExceeded),
			wantCode:    "UPL005",
			wantMessage: "Request timed out",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("RATE LIMIT hit"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestIsRequestError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("%w: x", ErrColumnNotFound), true},
		{ErrTooManyUploads, true},
		{context.Canceled, true},
		{fmt.Errorf("%w: corrupt", ErrSerialization), false},
		{errors.New("write session: connection reset"), false},
	}

	for _, tt := range tests {
		if got := IsRequestError(tt.err); got != tt.want {
			t.Errorf("IsRequestError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
