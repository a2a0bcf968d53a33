package errors

import (
	"errors"
	"fmt"
	"strings"
)

// The error taxonomy mirrors the blast radius of each failure:
//
//   ProtocolError    - malformed bytes on the wire; the message is dropped and
//                      the connection stays up.
//   ParseError       - the language-understanding provider failed for one turn;
//                      reported to the user, never retried automatically.
//   ActionError      - a single intent's execution failed; recorded in its
//                      result and cascaded as skips to dependents only.
//   InterruptedError - the user cancelled; terminal but not a failure that
//                      needs correction.

// ProtocolError wraps a transport-level decode failure.
type ProtocolError struct {
	Err    error
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("protocol error: %s", e.Detail)
	}
	return fmt.Sprintf("protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ParseError represents a turn-level intent parsing failure.
type ParseError struct {
	Err     error
	Message string // user-facing message
}

func (e *ParseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ActionError records a single intent execution failure.
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Code derives a short, speakable error code from the failing action,
// e.g. "get_weather" -> "WEATHER_FAILED".
func (e *ActionError) Code() string {
	action := strings.TrimSpace(e.Action)
	if action == "" {
		return "ACTION_FAILED"
	}
	parts := strings.Split(action, "_")
	last := parts[len(parts)-1]
	if last == "" {
		return "ACTION_FAILED"
	}
	return strings.ToUpper(last) + "_FAILED"
}

// InterruptedError marks a user-initiated cancellation.
type InterruptedError struct {
	TaskID string
}

func (e *InterruptedError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("interrupted: task %s", e.TaskID)
	}
	return "interrupted"
}

// NewProtocolError wraps err as a connection-level decode failure.
func NewProtocolError(err error, detail string) *ProtocolError {
	return &ProtocolError{Err: err, Detail: detail}
}

// NewParseError wraps a provider failure with a user-facing message.
func NewParseError(err error, message string) *ParseError {
	return &ParseError{Err: err, Message: message}
}

// NewActionError wraps a capability failure for one intent.
func NewActionError(action string, err error) *ActionError {
	return &ActionError{Action: action, Err: err}
}

// IsProtocol reports whether err is a transport-level decode failure.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsParse reports whether err is a turn-level parse failure.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsAction reports whether err is a single-intent execution failure.
func IsAction(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae)
}

// IsInterrupted reports whether err marks a user cancellation.
func IsInterrupted(err error) bool {
	var ie *InterruptedError
	return errors.As(err, &ie)
}

// UserMessage converts an error into a short sentence suitable for speech.
// Technical detail stays in logs; the spoken channel gets the gist.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) && parseErr.Message != "" {
		return parseErr.Message
	}

	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return fmt.Sprintf("I couldn't complete the %s action.", strings.ReplaceAll(actionErr.Action, "_", " "))
	}

	var interrupted *InterruptedError
	if errors.As(err, &interrupted) {
		return "Okay, stopping."
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection refused"):
		return "A backing service is not reachable right now."
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return "That took too long and timed out."
	case strings.Contains(lower, "not found"):
		return "I couldn't find what that needs."
	}
	return "Something went wrong with that request."
}
