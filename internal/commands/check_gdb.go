// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grant-h/AFLTriage/pkg/gdb"
	"github.com/grant-h/AFLTriage/pkg/process"
)

var checkGdbPath string

func NewCheckGdbCommand() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check-gdb",
		Short: "Checks that GDB is runnable and has a working embedded Python",
		Args:  cobra.NoArgs,
		RunE:  runCheckGdb,
	}

	checkCmd.Flags().StringVar(&checkGdbPath, "gdb", "", "GDB executable to use (default \"gdb\" from PATH)")

	return checkCmd
}

func runCheckGdb(cmd *cobra.Command, _ []string) error {
	log := rootCmdLogger.WithName("check-gdb")
	executor := process.NewOSExecutor(log)

	triager, err := gdb.NewTriager(log, executor, checkGdbPath)
	if err != nil {
		return err
	}
	defer func() { _ = triager.Close() }()

	if !triager.HasSupportedGdb(cmd.Context()) {
		return fmt.Errorf("GDB sanity check failed")
	}

	return nil
}
