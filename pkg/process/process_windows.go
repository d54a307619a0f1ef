// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

//go:build windows

package process

import "os/exec"

func DecoupleFromParent(_ *exec.Cmd) {
	// Process groups are not used on Windows.
}

func terminationSignal(_ *exec.Cmd) (string, bool) {
	return "", false
}
