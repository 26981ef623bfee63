// Copyright (c) 2021-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package github

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gogithub "github.com/google/go-github/v39/github"
	"github.com/pkg/errors"
)

// PreconditionError is returned when an operation is invoked without the
// state it requires, like a credential or a selected repository
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// TransportError wraps network and HTTP failures. StatusCode is zero when
// no response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Err.Error(), e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is returned when the server answers with a payload that
// cannot be decoded
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decoding GitHub response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError rejects user input before any request is made
type ValidationError struct {
	Field string
	Value string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Msg)
}

func IsPrecondition(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsDecode(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsNotFound returns true if the error is an HTTP 404 from the API
func IsNotFound(err error) bool {
	var target *TransportError
	if errors.As(err, &target) {
		return target.StatusCode == http.StatusNotFound
	}
	return false
}

// wrapAPIError classifies an error returned by the go-github client. A
// failure with a successful status means the body could not be decoded.
func wrapAPIError(resp *gogithub.Response, err error, msg string) error {
	if err == nil {
		return nil
	}
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	if status >= 200 && status < 300 {
		return &DecodeError{Err: errors.Wrap(err, msg)}
	}
	return &TransportError{StatusCode: status, Err: errors.Wrap(err, msg)}
}

// ParseIssueNumber converts text typed by the user into an issue number.
// A leading '#' is accepted.
func ParseIssueNumber(input string) (int, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(input), "#")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Field: "issue number", Value: input, Msg: "not a number"}
	}
	if n <= 0 {
		return 0, &ValidationError{Field: "issue number", Value: input, Msg: "must be positive"}
	}
	return n, nil
}
