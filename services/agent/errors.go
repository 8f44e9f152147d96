// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable failure category. The set is closed;
// transport code maps each kind to a distinct HTTP status so callers can
// tell retryable conditions (timeouts) from non-retryable ones.
type Kind string

const (
	// KindNotFound means the referenced application record is absent.
	KindNotFound Kind = "not_found"

	// KindUnavailable means a dependent model is not loaded.
	KindUnavailable Kind = "unavailable"

	// KindDataCorrupt means a stored payload could not be parsed.
	KindDataCorrupt Kind = "data_corrupt"

	// KindInvalidArguments means the operation arguments failed
	// validation against the registry schema.
	KindInvalidArguments Kind = "invalid_arguments"

	// KindUnknownOperation means the requested operation name is not
	// in the registry. Fatal to the current request.
	KindUnknownOperation Kind = "unknown_operation"

	// KindLLMTimeout means a language-model round exceeded the
	// configured timeout. No retry is attempted.
	KindLLMTimeout Kind = "llm_timeout"

	// KindLLMUnavailable means the language-model backend returned an
	// error response.
	KindLLMUnavailable Kind = "llm_unavailable"

	// KindMalformedToolArguments means the model's argument payload
	// was not well-formed JSON. Fatal to the current request.
	KindMalformedToolArguments Kind = "malformed_tool_arguments"
)

// Error is a typed agent failure carrying its taxonomy kind.
//
// The message contains only context the caller already knows (the
// identifier that was not found, the timeout that was exceeded), never
// internal trace detail.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a typed agent failure.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from an error chain. Returns ""
// when the error carries no agent kind.
func KindOf(err error) Kind {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.Kind
	}
	return ""
}

// Result is the tagged outcome of one tool dispatch.
//
// Either Status is "success" and Payload holds the operation-specific
// map, or Status is "error" and ErrorKind/Message describe a recovered
// domain failure. Results are ephemeral: serialized into the follow-up
// conversation and echoed to the caller, never persisted.
type Result struct {
	Status    string         `json:"status"`
	Payload   map[string]any `json:"payload,omitempty"`
	ErrorKind Kind           `json:"error_kind,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// StatusSuccess and StatusError are the two Result tags.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Succeeded reports whether the dispatch completed without a domain
// failure.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

func successResult(payload map[string]any) *Result {
	return &Result{Status: StatusSuccess, Payload: payload}
}

func failureResult(kind Kind, format string, args ...any) *Result {
	return &Result{
		Status:    StatusError,
		ErrorKind: kind,
		Message:   fmt.Sprintf(format, args...),
	}
}
