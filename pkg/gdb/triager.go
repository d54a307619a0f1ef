// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package gdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"

	"github.com/grant-h/AFLTriage/pkg/osutil"
	"github.com/grant-h/AFLTriage/pkg/process"
)

const defaultGdb = "gdb"

// versionProbe makes GDB print its own version and its embedded Python
// version as prefix-tagged lines we can find in the captured stdout.
const versionProbe = "python import gdb, sys; " +
	"print('V:'+gdb.execute('show version', to_string=True).splitlines()[0]); " +
	"print('P:'+sys.version.splitlines()[0].strip())"

// Triager drives GDB over one crashing invocation at a time and turns the
// captured console streams into a structured TriageResult.
//
// A Triager is single-threaded by design: each triage run spawns exactly one
// GDB subprocess and blocks until it exits with both streams fully drained.
// The only state shared across runs is the resolved script handle, which is
// read-only after construction, so sequential reuse is safe. Close removes
// the temporary script file.
type Triager struct {
	script   triageScript
	gdb      string
	executor process.Executor
	log      logr.Logger
}

// NewTriager creates a Triager using the embedded triage script, written out
// to a temporary file that lives until Close. gdbPath selects the debugger
// executable; empty means "gdb" from PATH.
//
// Fails if the script file cannot be created or written: no triage is
// possible without a script.
func NewTriager(log logr.Logger, executor process.Executor, gdbPath string) (*Triager, error) {
	script, err := newInternalScript()
	if err != nil {
		return nil, err
	}

	return newTriager(log, executor, gdbPath, script), nil
}

// NewExternalScriptTriager creates a Triager that would use a caller-supplied
// triage script. Known limitation: the driver cannot yet hand an external
// script to GDB, so TriageTestcase fails with ErrUnsupportedScriptLocation.
func NewExternalScriptTriager(log logr.Logger, executor process.Executor, gdbPath string, scriptPath string) *Triager {
	return newTriager(log, executor, gdbPath, &externalScript{path: scriptPath})
}

func newTriager(log logr.Logger, executor process.Executor, gdbPath string, script triageScript) *Triager {
	if gdbPath == "" {
		gdbPath = defaultGdb
	}

	return &Triager{
		script:   script,
		gdb:      gdbPath,
		executor: executor,
		log:      log.WithName("gdb-triager"),
	}
}

// Close releases the triage script resources.
func (t *Triager) Close() error {
	return t.script.Close()
}

// HasSupportedGdb checks that the configured GDB runs non-interactively and
// has a working embedded Python. Advisory preflight: it returns a boolean and
// logs diagnostics rather than failing; nothing else in the driver depends on
// it having been called.
func (t *Triager) HasSupportedGdb(ctx context.Context) bool {
	gdbArgs := []string{"--nx", "--batch", "-iex", versionProbe}

	output, err := t.executor.ExecuteCaptureOutput(ctx, exec.Command(t.gdb, gdbArgs...))
	if err != nil {
		t.log.Error(err, "Failed to execute GDB", "Gdb", t.gdb)
		return false
	}

	stdout := osutil.LossyString(output.Stdout)
	stderr := osutil.LossyString(output.Stderr)

	version := lineAfterPrefix(stdout, "V:")
	pythonVersion := lineAfterPrefix(stdout, "P:")

	if !output.Success() || version == "" || pythonVersion == "" {
		t.log.Info("GDB sanity check failure",
			"Args", strings.Join(gdbArgs, " "),
			"Stdout", stdout,
			"Stderr", stderr)
		return false
	}

	t.log.Info("GDB is working", "Version", version, "PythonVersion", pythonVersion)
	return true
}

// TriageTestcase runs progArgs (target program path plus its arguments) as
// the inferior under GDB, slices the captured streams on the marker protocol
// and deserializes the bracketed payload into a TriageResult.
//
// No partial result is ever returned: either every extraction and parse step
// succeeds, or the whole operation fails with a typed error saying which step
// broke. With showRawOutput the raw GDB transcript is echoed for diagnostics.
func (t *Triager) TriageTestcase(ctx context.Context, progArgs []string, showRawOutput bool) (*TriageResult, error) {
	scriptPath, err := t.script.scriptPath()
	if err != nil {
		return nil, err
	}

	gdbArgs := []string{
		"--batch", "--nx",
		// The index cache speeds up repeated triage runs over the same binary.
		"-iex", "set index-cache on",
		"-iex", "set index-cache directory gdb_cache",
		// Markers go to both stdout and stderr as the streams are not interleaved.
		"-ex", emitMarker(markerChildOutput.Start),
		// Redirect GDB's transcript away while the inferior runs so its
		// output is not interleaved with GDB chatter.
		"-ex", "set logging file /dev/null",
		"-ex", "set logging redirect on",
		"-ex", "set logging on",
		"-ex", "run",
		"-ex", "set logging redirect off",
		"-ex", "set logging off",
		"-ex", emitMarker(markerChildOutput.End),
		"-ex", emitMarker(markerBacktrace.Start),
		"-x", scriptPath,
		"-ex", emitMarker(markerBacktrace.End),
		"--args",
	}

	output, err := t.executor.ExecuteCaptureOutput(ctx, exec.Command(t.gdb, append(gdbArgs, progArgs...)...))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}

	stdout := osutil.LossyString(output.Stdout)
	stderr := osutil.LossyString(output.Stderr)

	if showRawOutput {
		fmt.Fprintf(os.Stdout, "--- RAW GDB OUTPUT ---\nGDB ARGS: %s\nPROGRAM ARGS: %s\nSTDOUT:\n%s\nSTDERR:\n%s\n",
			strings.Join(gdbArgs, " "), strings.Join(progArgs, " "), stdout, stderr)
	}

	childStdout, err := markerChildOutput.Extract(stdout)
	if err != nil {
		return nil, fmt.Errorf("could not extract child STDOUT: %w", err)
	}

	childStderr, err := markerChildOutput.Extract(stderr)
	if err != nil {
		return nil, fmt.Errorf("could not extract child STDERR: %w", err)
	}

	backtraceOutput, err := markerBacktrace.Extract(stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to get triage JSON from GDB: %w", err)
	}

	backtraceErrors, err := markerBacktrace.Extract(stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to get triage errors from GDB: %w", err)
	}

	// The triage script signals its own failures via stderr content, not
	// just exit status.
	if backtraceErrors != "" {
		return nil, fmt.Errorf("%w: %s", ErrTriageScript, backtraceErrors)
	}

	var threadInfo ThreadInfo
	if err := json.Unmarshal([]byte(backtraceOutput), &threadInfo); err != nil {
		return nil, fmt.Errorf("%w: %v (payload: %s)", ErrPayloadParse, err, backtraceOutput)
	}

	return &TriageResult{
		ThreadInfo: threadInfo,
		Child: ChildResult{
			Stdout:     childStdout,
			Stderr:     childStderr,
			StatusCode: output.ExitCode,
		},
	}, nil
}

// emitMarker builds a GDB directive that writes the marker as its own line to
// both of GDB's output streams.
func emitMarker(marker string) string {
	return fmt.Sprintf("python [x.write('%s\\n') for x in [sys.stdout, sys.stderr]]", marker)
}

// lineAfterPrefix returns the remainder of the line following the first
// occurrence of prefix, or "" if the prefix is absent.
func lineAfterPrefix(text string, prefix string) string {
	idx := strings.Index(text, prefix)
	if idx < 0 {
		return ""
	}

	line := text[idx+len(prefix):]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	return strings.TrimRight(line, "\r")
}
