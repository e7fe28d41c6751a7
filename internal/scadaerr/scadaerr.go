// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scadaerr defines the error kinds shared across the engine.
//
// No error crosses a driver boundary: every driver catches its own
// transport failures, logs them, and either retries or disconnects. These
// sentinels let callers use errors.Is/errors.As instead of string matching.
package scadaerr

import "errors"

var (
	// ErrBadExpression is raised by Expression.Analyze when a referenced
	// identifier does not resolve in the tag index.
	ErrBadExpression = errors.New("bad expression")

	// ErrEval is raised while reevaluating an expression (e.g. division
	// by zero). The expression's value becomes null until its inputs
	// change again.
	ErrEval = errors.New("evaluation error")

	// ErrUnsupportedType is returned by a driver write when the target
	// address has no known coercion rule for the given value.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrReadOnly is returned by a driver write against a read-only
	// address space (Modbus input/input-register).
	ErrReadOnly = errors.New("read only")

	// ErrTransport wraps any socket/DB/SMTP failure. Recovered locally:
	// the driver marks itself disconnected and the scan loop retries.
	ErrTransport = errors.New("transport error")

	// ErrProtocol wraps malformed or rejected data from a peer or file: an
	// unparsable CSV, a failed OPC-UA browse/subscribe or rejected write,
	// or a historian Avro encoding failure.
	ErrProtocol = errors.New("protocol error")

	// ErrUnsupportedEncoding is returned by csvimport for any CSV
	// encoding other than UTF-8 or Latin-1.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")

	// ErrCircularReference is raised by Ensemble.Deploy when an
	// expression transitively references itself.
	ErrCircularReference = errors.New("circular expression reference")

	// ErrUnknownTag is returned when a lookup key has no registered tag.
	ErrUnknownTag = errors.New("unknown tag")

	// ErrDuplicateKey is returned when a tag or alarm key collides with
	// an existing one in the same index.
	ErrDuplicateKey = errors.New("duplicate key")
)
