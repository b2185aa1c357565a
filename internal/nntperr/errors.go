// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package nntperr defines the typed error taxonomy shared by the NNTP
// client, deobfuscation pipeline, and external lookup clients. Every
// operation that can fail for more than one reason returns one of these
// kinds (wrapped with context) rather than a bare error, so callers can
// branch on failure class without string matching.
package nntperr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// KindUnknown is the zero value; never returned by this package.
	KindUnknown Kind = iota
	// KindNetwork covers connection refused/reset, DNS failure, and I/O
	// errors while talking to an upstream server.
	KindNetwork
	// KindAuth covers NNTP authentication failures (response code 48x)
	// and rejected external API credentials.
	KindAuth
	// KindProtocol covers malformed or unexpected wire responses (bad
	// status codes, truncated multi-line blocks).
	KindProtocol
	// KindDecode covers body decode failures (yEnc, archive headers).
	KindDecode
	// KindNotFound covers unknown groups, missing articles, and 404s
	// from external lookup endpoints.
	KindNotFound
	// KindIntegrity covers data that parsed but failed a consistency
	// check (e.g. a checksum or invariant violation).
	KindIntegrity
	// KindTimeout covers context deadline exceeded and request timeouts.
	KindTimeout
	// KindFatal covers errors that should stop a worker rather than be
	// retried or skipped (e.g. misconfiguration discovered at runtime).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	case KindNotFound:
		return "not_found"
	case KindIntegrity:
		return "integrity"
	case KindTimeout:
		return "timeout"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a typed, wrapped error carrying a Kind plus the operation that
// produced it. Op is a short dotted path like "nntp.Connect" or
// "yenc.Decode", used for log correlation, not for branching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err (which may be nil) as a typed Error of the given kind,
// tagged with op for correlation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind == kind
	}
	return false
}

// Retryable reports whether a failure of this kind is worth retrying once
// with a fresh connection, per §4.1's "retried once with a fresh
// connection for idempotent calls" contract.
func Retryable(err error) bool {
	var typed *Error
	if !errors.As(err, &typed) {
		return false
	}
	switch typed.Kind {
	case KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}
