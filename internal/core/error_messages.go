package core

// error_messages.go maps technical errors to coded user messages.
//
// # Error Codes Reference
//
// Users quote the code to support staff; the technical error is only logged.
//
// # Merge Errors (PARSE, INPUT, WRITE)
//
// Matched by type before any pattern:
//
//	PARSE001 - A workbook could not be read (*merge.ParseError)
//	           Action: Check that the file is a valid .xlsx or .xls export
//	INPUT001 - A required file was not supplied (*merge.MissingInputError)
//	           Action: Select both the Report 24 and Report 12 files
//	WRITE001 - The output workbook could not be produced (*merge.WriteError)
//	           Action: Please try again
//
// # Run Errors (UPL001-UPL099)
//
//	UPL001 - Merge cancelled (context.Canceled, "merge cancelled")
//	UPL002 - System busy (ErrTooManyMerges, "too many concurrent merges")
//	UPL003 - Run expired ("run not found")
//	UPL004 - Merge timed out (context.DeadlineExceeded)
//	UPL005 - Run still in progress (ErrRunNotComplete)
//	UPL006 - Nothing to publish (ErrNothingToPublish)
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Unsupported file type
//	FILE003 - Encoding error
//	FILE004 - No file provided
//	FILE005 - Empty file
//
// # Database Errors (DB001-DB099)
//
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//
// # Sync Errors (SYNC001-SYNC099)
//
//	SYNC001 - Sync not configured
//	SYNC002 - Sync already running
//	SYNC003 - Feed returned an error status or malformed body
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// Typed checks run first, then patterns in order (case-insensitive
// strings.Contains). The first match wins, so specific patterns precede
// general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/guarantor/internal/merge"
	"github.com/JonMunkholm/guarantor/internal/sheet"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // what happened
	Action  string `json:"action"`  // what to do about it
	Code    string `json:"code"`    // support reference
}

type errorCheck struct {
	match func(error) bool
	msg   UserMessage
}

func isType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

var (
	msgCancelled = UserMessage{
		Message: "Merge was cancelled",
		Action:  "Start a new merge when ready",
		Code:    "UPL001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other merges",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgRunNotFound = UserMessage{
		Message: "Merge session not found",
		Action:  "The result may have expired. Please run the merge again",
		Code:    "UPL003",
	}
	msgTimeout = UserMessage{
		Message: "Merge timed out",
		Action:  "Try smaller files or try again later",
		Code:    "UPL004",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Export a smaller report and try again",
		Code:    "FILE001",
	}
	msgUnsupported = UserMessage{
		Message: "Unsupported file type",
		Action:  "Upload the report as .xlsx or .xls",
		Code:    "FILE002",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a report with data rows",
		Code:    "FILE005",
	}
)

// typedChecks run before the substring patterns. Order matters: file-level
// sentinels are wrapped inside *merge.ParseError and must win over it.
var typedChecks = []errorCheck{
	{match: isType[*merge.MissingInputError], msg: UserMessage{
		Message: "Both files are required",
		Action:  "Select the Report 24 (guarantor) and Report 12 (active client) files",
		Code:    "INPUT001",
	}},
	{match: is(ErrFileTooLarge), msg: msgFileTooLarge},
	{match: is(sheet.ErrUnsupportedFormat), msg: msgUnsupported},
	{match: is(sheet.ErrEmptyFile), msg: msgEmptyFile},
	{match: isType[*merge.ParseError], msg: UserMessage{
		Message: "Could not read one of the workbooks",
		Action:  "Check that the file is a valid .xlsx or .xls export",
		Code:    "PARSE001",
	}},
	{match: isType[*merge.WriteError], msg: UserMessage{
		Message: "Could not produce the output workbook",
		Action:  "Please try again",
		Code:    "WRITE001",
	}},
	{match: is(ErrTooManyMerges), msg: msgBusy},
	{match: is(ErrRunNotFound), msg: msgRunNotFound},
	{match: is(ErrRunNotComplete), msg: UserMessage{
		Message: "The merge is still running",
		Action:  "Wait for the merge to finish",
		Code:    "UPL005",
	}},
	{match: is(ErrNothingToPublish), msg: UserMessage{
		Message: "This merge has no records to publish",
		Action:  "Run a merge that produces matched records first",
		Code:    "UPL006",
	}},
	{match: is(ErrSyncNotConfigured), msg: UserMessage{
		Message: "Record sync is not configured",
		Action:  "Set SYNC_FEED_URL and restart the server",
		Code:    "SYNC001",
	}},
	{match: is(ErrSyncInProgress), msg: UserMessage{
		Message: "A sync is already running",
		Action:  "Wait for the current sync to finish",
		Code:    "SYNC002",
	}},
	{match: isType[*FeedError], msg: UserMessage{
		Message: "The record feed could not be read",
		Action:  "Please try again later",
		Code:    "SYNC003",
	}},
	{match: is(context.Canceled), msg: msgCancelled},
	{match: is(context.DeadlineExceeded), msg: msgTimeout},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that arrive as plain text, for example from
// the database driver.
var errorPatterns = []errorPattern{
	{pattern: "merge cancelled", msg: msgCancelled},
	{pattern: "too many concurrent merges", msg: msgBusy},
	{pattern: "run not found", msg: msgRunNotFound},
	{pattern: "file too large", msg: msgFileTooLarge},
	{pattern: "unsupported file format", msg: msgUnsupported},
	{pattern: "encoding error", msg: UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file as UTF-8 or export it as .xlsx",
		Code:    "FILE003",
	}},
	{pattern: "no file provided", msg: UserMessage{
		Message: "No file was selected",
		Action:  "Please select a report file to upload",
		Code:    "FILE004",
	}},
	{pattern: "file is empty", msg: msgEmptyFile},
	{pattern: "connection refused", msg: UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{pattern: "connection reset", msg: UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{pattern: "timeout", msg: UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "DB006",
	}},
	{pattern: "deadlock", msg: UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{pattern: "rate limit", msg: UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	for _, c := range typedChecks {
		if c.match(err) {
			return c.msg
		}
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

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown to users.
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

// NewUserError maps err and keeps it for logging. Returns nil for nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
