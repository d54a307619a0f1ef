// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package gdb

// UnknownLine is the conventional value GDB reports for frames whose source
// line could not be resolved (stripped or inlined frames).
const UnknownLine int64 = -1

// Symbol identifies where a frame's instruction pointer resolves to in source.
type Symbol struct {
	FunctionName        string `json:"function_name"`
	MangledFunctionName string `json:"mangled_function_name"`
	FunctionSignature   string `json:"function_signature"`
	File                string `json:"file"`

	// Line is UnknownLine (or absent in the payload, decoding to zero) when
	// GDB could not resolve one. Any value <= 0 means "unknown".
	Line int64 `json:"line"`
}

// Variable is a debugger-stringified function argument or local. Value is
// opaque formatted text and is never re-parsed.
type Variable struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Frame is one stack level. Address is the absolute instruction pointer;
// RelativeAddress is the offset from the owning module's load base, which is
// the stable form for ASLR'd binaries. PrettyAddress keeps GDB's own
// human-formatted rendering alongside the numeric forms.
type Frame struct {
	Address         int64      `json:"address"`
	RelativeAddress int64      `json:"relative_address"`
	Module          string     `json:"module"`
	PrettyAddress   string     `json:"pretty_address"`
	Symbol          Symbol     `json:"symbol"`
	Args            []Variable `json:"args"`
	Locals          []Variable `json:"locals"`
}

// Thread is a single thread's backtrace, ordered innermost frame first.
type Thread struct {
	Tid       int32   `json:"tid"`
	Backtrace []Frame `json:"backtrace"`
}

// ThreadInfo is the complete payload emitted by the triage script.
// CurrentTid identifies the thread that had control at the triage point,
// usually the one that faulted.
type ThreadInfo struct {
	CurrentTid int32    `json:"current_tid"`
	Threads    []Thread `json:"threads"`
}

// CurrentThread returns the thread matching CurrentTid, or nil if the payload
// does not contain one.
func (ti *ThreadInfo) CurrentThread() *Thread {
	for i := range ti.Threads {
		if ti.Threads[i].Tid == ti.CurrentTid {
			return &ti.Threads[i]
		}
	}
	return nil
}

// ChildResult is the inferior's own captured output as relayed by GDB, plus
// the exit status reported by the process executor for the GDB run.
type ChildResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	StatusCode int32  `json:"status_code"`
}

// TriageResult is the complete output of one triage operation. It is owned
// exclusively by the caller once returned; the Triager holds no reference.
type TriageResult struct {
	ThreadInfo ThreadInfo  `json:"thread_info"`
	Child      ChildResult `json:"child"`
}
