// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/go-logr/logr"
	ps "github.com/shirou/gopsutil/v4/process"
)

// A valid exit code of a process is a non-negative number. UnknownExitCode
// indicates that the exit code could not be captured.
const UnknownExitCode int32 = -1

// Output is the fully captured result of one subprocess run.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int32
}

func (o *Output) Success() bool {
	return o.ExitCode == 0
}

// Executor runs a command to completion, capturing its output.
type Executor interface {
	// ExecuteCaptureOutput spawns the command, waits for it to exit, and
	// returns its exit code with both output streams fully drained (so large
	// output cannot deadlock an unread pipe). The call blocks until the
	// process exits; cancelling ctx kills the process, but the streams are
	// still drained before returning.
	ExecuteCaptureOutput(ctx context.Context, cmd *exec.Cmd) (*Output, error)
}

// OSExecutor runs commands as ordinary OS child processes.
type OSExecutor struct {
	log logr.Logger
}

func NewOSExecutor(log logr.Logger) *OSExecutor {
	return &OSExecutor{
		log: log.WithName("os-executor"),
	}
}

func (e *OSExecutor) ExecuteCaptureOutput(ctx context.Context, cmd *exec.Cmd) (*Output, error) {
	if cmd.Stdout != nil || cmd.Stderr != nil {
		return nil, errors.New("command already has stdout or stderr attached")
	}

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.Stdout = outBuf
	cmd.Stderr = errBuf

	DecoupleFromParent(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	pid := cmd.Process.Pid
	e.log.V(1).Info("Started process",
		"Command", cmd.String(),
		"PID", pid,
		"StartTime", startTimeForProcess(pid))

	// Kill the process if the context expires before it exits.
	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = cmd.Process.Kill()
		case <-waitDone:
		}
	}()

	// Wait drains both output streams before returning.
	waitErr := cmd.Wait()
	close(waitDone)

	exitCode, err := getProcessExecResult(waitErr, cmd)
	if err != nil {
		return nil, err
	}

	if sig, signaled := terminationSignal(cmd); signaled {
		e.log.V(1).Info("Process was terminated by a signal", "PID", pid, "Signal", sig)
	}

	return &Output{
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
		ExitCode: exitCode,
	}, nil
}

// A non-zero exit is a result, not an error; only a failure to run or track
// the process is reported as an error.
func getProcessExecResult(waitErr error, cmd *exec.Cmd) (int32, error) {
	var ee *exec.ExitError
	if waitErr == nil {
		return int32(cmd.ProcessState.ExitCode()), nil
	} else if errors.As(waitErr, &ee) {
		return int32(ee.ExitCode()), nil
	} else {
		return UnknownExitCode, waitErr
	}
}

// Returns the creation time for a process, for diagnostic correlation.
// This time is intended for display purposes only.
func startTimeForProcess(pid int) time.Time {
	proc, err := ps.NewProcess(int32(pid))
	if err != nil {
		return time.Time{}
	}

	createTimestamp, err := proc.CreateTime()
	if err != nil {
		return time.Time{}
	}

	return time.UnixMilli(createTimestamp)
}
