// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package gdb

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "current_tid": 7,
  "threads": [
    {
      "tid": 7,
      "backtrace": [
        {
          "address": 94227747091901,
          "relative_address": 4541,
          "module": "/fuzz/target",
          "pretty_address": "main+29 in section .text of /fuzz/target",
          "symbol": {
            "function_name": "main",
            "mangled_function_name": "main",
            "function_signature": "int (int, char **)",
            "file": "target.c",
            "line": 42
          },
          "args": [
            {"type": "int", "name": "argc", "value": "2"},
            {"type": "char **", "name": "argv", "value": "0x7ffd1c0"}
          ],
          "locals": [
            {"type": "char *", "name": "buf", "value": "0x0"}
          ]
        },
        {
          "address": 140737348263605,
          "relative_address": 161461,
          "module": "/lib/libc.so.6",
          "pretty_address": "__libc_start_main+245",
          "symbol": {
            "function_name": "__libc_start_main",
            "mangled_function_name": "",
            "function_signature": "",
            "file": "",
            "line": -1
          },
          "args": [],
          "locals": []
        }
      ]
    },
    {
      "tid": 8,
      "backtrace": []
    }
  ]
}`

func TestThreadInfoParsing(t *testing.T) {
	t.Parallel()

	var ti ThreadInfo
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &ti))

	require.Equal(t, int32(7), ti.CurrentTid)
	require.Len(t, ti.Threads, 2)

	// The current tid must match exactly one thread.
	matches := 0
	for _, thread := range ti.Threads {
		if thread.Tid == ti.CurrentTid {
			matches++
		}
	}
	require.Equal(t, 1, matches)

	current := ti.CurrentThread()
	require.NotNil(t, current)
	require.Equal(t, int32(7), current.Tid)
	require.Len(t, current.Backtrace, 2)

	innermost := current.Backtrace[0]
	require.Equal(t, int64(94227747091901), innermost.Address)
	require.Equal(t, int64(4541), innermost.RelativeAddress)
	require.Equal(t, "main", innermost.Symbol.FunctionName)
	require.Equal(t, int64(42), innermost.Symbol.Line)
	require.Len(t, innermost.Args, 2)
	require.Len(t, innermost.Locals, 1)
}

func TestThreadInfoPreservesUnknownLine(t *testing.T) {
	t.Parallel()

	var ti ThreadInfo
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &ti))

	outermost := ti.CurrentThread().Backtrace[1]
	require.Equal(t, UnknownLine, outermost.Symbol.Line)
}

func TestThreadInfoToleratesAbsentLine(t *testing.T) {
	t.Parallel()

	payload := `{"current_tid":1,"threads":[{"tid":1,"backtrace":[` +
		`{"address":1,"relative_address":1,"module":"m","pretty_address":"p",` +
		`"symbol":{"function_name":"f","mangled_function_name":"f","function_signature":"","file":""},` +
		`"args":[],"locals":[]}]}]}`

	var ti ThreadInfo
	require.NoError(t, json.Unmarshal([]byte(payload), &ti))

	// An absent line decodes to zero, which is still distinguishable from
	// any real (1-based) line number.
	require.LessOrEqual(t, ti.Threads[0].Backtrace[0].Symbol.Line, int64(0))
}

func TestCurrentThreadMissing(t *testing.T) {
	t.Parallel()

	ti := ThreadInfo{
		CurrentTid: 99,
		Threads:    []Thread{{Tid: 1}},
	}
	require.Nil(t, ti.CurrentThread())
}
