// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package gdb

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grant-h/AFLTriage/pkg/process"
	"github.com/grant-h/AFLTriage/pkg/testutil"
)

// fakeExecutor returns canned output instead of spawning GDB, and records
// the command it was asked to run.
type fakeExecutor struct {
	output  *process.Output
	err     error
	lastCmd *exec.Cmd
}

func (f *fakeExecutor) ExecuteCaptureOutput(_ context.Context, cmd *exec.Cmd) (*process.Output, error) {
	f.lastCmd = cmd
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

var _ process.Executor = &fakeExecutor{}

func bracket(m Marker, payload string) string {
	return m.Start + "\n" + payload + m.End + "\n"
}

func newTestTriager(t *testing.T, executor process.Executor) *Triager {
	t.Helper()

	triager, err := NewTriager(testutil.NewLogForTesting(t.Name()), executor, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = triager.Close() })

	return triager
}

const emptyBacktracePayload = `{"current_tid":1,"threads":[{"tid":1,"backtrace":[]}]}`

func successOutput(exitCode int32) *process.Output {
	stdout := "GNU gdb chatter\n" +
		bracket(markerChildOutput, "hello\n") +
		"more chatter\n" +
		bracket(markerBacktrace, emptyBacktracePayload+"\n")
	stderr := bracket(markerChildOutput, "") + bracket(markerBacktrace, "")

	return &process.Output{
		Stdout:   []byte(stdout),
		Stderr:   []byte(stderr),
		ExitCode: exitCode,
	}
}

func TestTriageTestcase(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{output: successOutput(0)}
	triager := newTestTriager(t, executor)

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	result, err := triager.TriageTestcase(ctx, []string{"/fuzz/target", "input.bin"}, false)
	require.NoError(t, err)

	require.Equal(t, "hello\n", result.Child.Stdout)
	require.Equal(t, "", result.Child.Stderr)
	require.Equal(t, int32(0), result.Child.StatusCode)

	require.Equal(t, int32(1), result.ThreadInfo.CurrentTid)
	require.Len(t, result.ThreadInfo.Threads, 1)
	require.Equal(t, int32(1), result.ThreadInfo.Threads[0].Tid)
	require.Empty(t, result.ThreadInfo.Threads[0].Backtrace)
}

func TestTriageTestcaseGdbArgumentVector(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{output: successOutput(0)}
	triager := newTestTriager(t, executor)

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	_, err := triager.TriageTestcase(ctx, []string{"/fuzz/target", "--flag", "input.bin"}, false)
	require.NoError(t, err)

	args := executor.lastCmd.Args
	require.Equal(t, "gdb", args[0])
	require.Contains(t, args, "--batch")
	require.Contains(t, args, "--nx")

	// The target invocation follows "--args" verbatim so GDB treats flags in
	// the program arguments as the inferior's, not its own.
	sepIdx := -1
	for i, a := range args {
		if a == "--args" {
			sepIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, sepIdx, 0)
	require.Equal(t, []string{"/fuzz/target", "--flag", "input.bin"}, args[sepIdx+1:])

	// The script path handed to -x must exist and hold the embedded script.
	scriptIdx := -1
	for i, a := range args {
		if a == "-x" {
			scriptIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, scriptIdx, 0)
	content, err := os.ReadFile(args[scriptIdx+1])
	require.NoError(t, err)
	require.Equal(t, internalTriageScript, content)
}

func TestTriageTestcaseReportsExitStatus(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{output: successOutput(3)}
	triager := newTestTriager(t, executor)

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	result, err := triager.TriageTestcase(ctx, []string{"/fuzz/target"}, false)
	require.NoError(t, err)
	require.Equal(t, int32(3), result.Child.StatusCode)
}

func TestTriageTestcaseSpawnFailure(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{err: errors.New("exec: \"gdb\": executable file not found in $PATH")}
	triager := newTestTriager(t, executor)

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	_, err := triager.TriageTestcase(ctx, []string{"/fuzz/target"}, false)
	require.ErrorIs(t, err, ErrSpawnFailure)
}

func TestTriageTestcaseMissingBacktraceMarkers(t *testing.T) {
	t.Parallel()

	// GDB died before sourcing the triage script: child output markers made
	// it out, backtrace markers did not.
	stdout := bracket(markerChildOutput, "hello\n")
	stderr := bracket(markerChildOutput, "")
	executor := &fakeExecutor{output: &process.Output{
		Stdout: []byte(stdout),
		Stderr: []byte(stderr),
	}}
	triager := newTestTriager(t, executor)

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	_, err := triager.TriageTestcase(ctx, []string{"/fuzz/target"}, false)
	require.ErrorIs(t, err, ErrMarkerNotFound)
	require.Contains(t, err.Error(), markerBacktrace.Start)
}

func TestTriageTestcaseScriptError(t *testing.T) {
	t.Parallel()

	stdout := bracket(markerChildOutput, "") +
		bracket(markerBacktrace, "this would not parse as JSON\n")
	stderr := bracket(markerChildOutput, "") +
		bracket(markerBacktrace, "triage failed: no stack\n")
	executor := &fakeExecutor{output: &process.Output{
		Stdout: []byte(stdout),
		Stderr: []byte(stderr),
	}}
	triager := newTestTriager(t, executor)

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	// Script errors are reported verbatim and win over any payload parsing.
	_, err := triager.TriageTestcase(ctx, []string{"/fuzz/target"}, false)
	require.ErrorIs(t, err, ErrTriageScript)
	require.Contains(t, err.Error(), "triage failed: no stack")
	require.NotErrorIs(t, err, ErrPayloadParse)
}

func TestTriageTestcaseInvalidPayload(t *testing.T) {
	t.Parallel()

	stdout := bracket(markerChildOutput, "") +
		bracket(markerBacktrace, `{"current_tid":1,"threads":[{"tid"`)
	stderr := bracket(markerChildOutput, "") + bracket(markerBacktrace, "")
	executor := &fakeExecutor{output: &process.Output{
		Stdout: []byte(stdout),
		Stderr: []byte(stderr),
	}}
	triager := newTestTriager(t, executor)

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	_, err := triager.TriageTestcase(ctx, []string{"/fuzz/target"}, false)
	require.ErrorIs(t, err, ErrPayloadParse)
}

func TestTriageTestcaseExternalScriptUnsupported(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{output: successOutput(0)}
	triager := NewExternalScriptTriager(testutil.NewLogForTesting(t.Name()), executor, "", "/tmp/custom.py")
	defer func() { _ = triager.Close() }()

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	_, err := triager.TriageTestcase(ctx, []string{"/fuzz/target"}, false)
	require.ErrorIs(t, err, ErrUnsupportedScriptLocation)

	// The driver must not have spawned GDB at all.
	require.Nil(t, executor.lastCmd)
}

func TestTriagerCloseRemovesScript(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{output: successOutput(0)}
	triager, err := NewTriager(testutil.NewLogForTesting(t.Name()), executor, "")
	require.NoError(t, err)

	scriptPath, err := triager.script.scriptPath()
	require.NoError(t, err)
	_, err = os.Stat(scriptPath)
	require.NoError(t, err)

	require.NoError(t, triager.Close())
	_, err = os.Stat(scriptPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestHasSupportedGdb(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{output: &process.Output{
		Stdout: []byte("V:GNU gdb (GDB) 12.1\nP:3.10.4 (main, Jun  1 2022, 00:00:00)\n"),
	}}
	triager := newTestTriager(t, executor)

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	require.True(t, triager.HasSupportedGdb(ctx))

	args := executor.lastCmd.Args
	require.Equal(t, "gdb", args[0])
	require.Contains(t, args, "--nx")
	require.Contains(t, args, "--batch")
}

func TestHasSupportedGdbMissingVersionLine(t *testing.T) {
	t.Parallel()

	for name, stdout := range map[string]string{
		"no python version": "V:GNU gdb (GDB) 12.1\n",
		"no gdb version":    "P:3.10.4\n",
		"empty output":      "",
	} {
		executor := &fakeExecutor{output: &process.Output{Stdout: []byte(stdout)}}
		triager := newTestTriager(t, executor)

		ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
		require.False(t, triager.HasSupportedGdb(ctx), name)
		cancel()
	}
}

func TestHasSupportedGdbUnsuccessfulExit(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{output: &process.Output{
		Stdout:   []byte("V:GNU gdb (GDB) 12.1\nP:3.10.4\n"),
		ExitCode: 1,
	}}
	triager := newTestTriager(t, executor)

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	require.False(t, triager.HasSupportedGdb(ctx))
}

func TestHasSupportedGdbSpawnFailure(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{err: errors.New("permission denied")}
	triager := newTestTriager(t, executor)

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	require.False(t, triager.HasSupportedGdb(ctx))
}
