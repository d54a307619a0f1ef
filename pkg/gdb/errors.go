// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package gdb

import "errors"

var (
	// ErrSpawnFailure is returned when the GDB executable could not be launched
	// (not found, permission denied).
	ErrSpawnFailure = errors.New("failed to execute GDB command")

	// ErrUnsupportedScriptLocation is returned when no usable triage script
	// path could be resolved for GDB to source.
	ErrUnsupportedScriptLocation = errors.New("unsupported triage script location")

	// ErrMarkerNotFound is returned when a required sentinel never appeared in
	// the captured stream. This typically means GDB crashed or was killed
	// before reaching that point in its command list.
	ErrMarkerNotFound = errors.New("marker not found in captured output")

	// ErrMarkersOutOfOrder is returned when the end sentinel textually
	// precedes the start sentinel. A sign that marker text leaked from the
	// inferior's own output.
	ErrMarkersOutOfOrder = errors.New("start marker and end marker out-of-order")

	// ErrTriageScript is returned when the triage script ran but reported an
	// internal failure via its stderr channel.
	ErrTriageScript = errors.New("triage script emitted errors")

	// ErrPayloadParse is returned when the bracketed stdout slice was not a
	// valid JSON document matching the crash report schema.
	ErrPayloadParse = errors.New("failed to parse triage JSON from GDB")
)
