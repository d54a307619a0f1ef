// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// Use a separate process group so signals aimed at this process do not reach
// the children.
func DecoupleFromParent(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminationSignal reports the signal that ended the process, if it died to
// one. Only valid after the command has been waited on.
func terminationSignal(cmd *exec.Cmd) (string, bool) {
	if cmd.ProcessState == nil {
		return "", false
	}

	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return "", false
	}

	return ws.Signal().String(), true
}
