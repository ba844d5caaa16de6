// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidMemoryRecord indicates a MemoryRecord failed validation.
	ErrInvalidMemoryRecord = errors.New("invalid memory record")

	// ErrInvalidJob indicates a ProcessingJob failed validation.
	ErrInvalidJob = errors.New("invalid processing job")

	// ErrInvalidConcept indicates a Concept failed validation.
	ErrInvalidConcept = errors.New("invalid concept")

	// ErrInvalidEdge indicates a RelationshipEdge failed validation.
	ErrInvalidEdge = errors.New("invalid relationship edge")

	// ErrEmptyContent indicates the content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyUserID indicates a missing user scope.
	ErrEmptyUserID = errors.New("user id cannot be empty")

	// ErrEmptyLabel indicates the concept label is empty.
	ErrEmptyLabel = errors.New("concept label cannot be empty")

	// ErrInvalidTransition indicates a job status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrProgressOutOfRange indicates processed chunks outside [0, total].
	ErrProgressOutOfRange = errors.New("processed chunks out of range")

	// ErrInvalidLength indicates a corrupt length prefix in encoded data.
	ErrInvalidLength = errors.New("invalid length prefix")
)

// Kind classifies an error for callers.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Retryable reports whether resubmitting the same request may succeed.
func (k Kind) Retryable() bool {
	return k == KindUpstream
}

// Error is a classified error carrying a caller-safe message.
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

// NewValidationError reports missing or malformed input.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewAuthError reports missing credentials.
func NewAuthError(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// NewForbiddenError reports a requester that does not own the resource.
func NewForbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NewNotFoundError reports an unknown resource.
func NewNotFoundError(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// NewUpstreamError reports an embedder or vector store failure.
func NewUpstreamError(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns a message safe to show to callers.
// Internal errors never expose their cause.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "internal error"
	}
	return e.Message
}
