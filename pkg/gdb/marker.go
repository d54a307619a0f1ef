// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package gdb

import (
	"fmt"
	"strings"
)

// Marker is a pair of textual sentinels used to bracket a region of interest
// in GDB's console output. GDB's own transcript, the inferior's output, and
// the triage payload all land on the same two streams with no structural
// separation; printing markers from inside GDB's scripting environment is the
// only reliable delimiter available without modifying GDB's low-level I/O.
type Marker struct {
	Start string
	End   string
}

// NewMarker derives the sentinel pair for a tag. Deterministic: the same tag
// always yields the same pair.
func NewMarker(tag string) Marker {
	return Marker{
		Start: "----" + tag + "_START----",
		End:   "----" + tag + "_END----",
	}
}

var (
	markerChildOutput = NewMarker("AFLTRIAGE_CHILD_OUTPUT")
	markerBacktrace   = NewMarker("AFLTRIAGE_BACKTRACE")
)

// Extract returns the text between the marker's start and end sentinels.
// Markers are always printed on their own line, so the single newline
// following the start sentinel is skipped. The payload is returned exactly
// as captured, including internal newlines; no trimming, since JSON payloads
// are sensitive to exact boundaries.
func (m Marker) Extract(text string) (string, error) {
	startIdx := strings.Index(text, m.Start)
	if startIdx < 0 {
		return "", fmt.Errorf("%w: %s", ErrMarkerNotFound, m.Start)
	}

	endIdx := strings.Index(text, m.End)
	if endIdx < 0 {
		return "", fmt.Errorf("%w: %s", ErrMarkerNotFound, m.End)
	}

	startIdx += len(m.Start) + 1
	if startIdx > endIdx {
		// The end sentinel appeared before the start sentinel, e.g. because
		// the inferior's own output contained the end marker text.
		return "", fmt.Errorf("%w: %s appears before %s", ErrMarkersOutOfOrder, m.End, m.Start)
	}

	return text[startIdx:endIdx], nil
}
