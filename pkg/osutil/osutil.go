// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package osutil

import (
	"strings"
	"unicode/utf8"
)

// LossyString decodes raw subprocess output permissively, replacing invalid
// UTF-8 sequences instead of rejecting them. Debugger and crashing-program
// output is not guaranteed to be clean text.
func LossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
