// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/grant-h/AFLTriage/pkg/gdb"
	"github.com/grant-h/AFLTriage/pkg/process"
)

var (
	showRawOutput    bool
	gdbPath          string
	triageScriptPath string
)

func NewTriageCommand() *cobra.Command {
	triageCmd := &cobra.Command{
		Use:   "triage <program> [args...]",
		Short: "Runs the target invocation under GDB and prints a JSON crash report",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTriage,
	}

	triageCmd.Flags().BoolVar(&showRawOutput, "raw-output", false, "Echo the raw GDB transcript for diagnostics")
	triageCmd.Flags().StringVar(&gdbPath, "gdb", "", "GDB executable to use (default \"gdb\" from PATH)")
	triageCmd.Flags().StringVar(&triageScriptPath, "triage-script", "", "Path to an external triage script instead of the embedded one")

	// Program arguments frequently start with dashes.
	triageCmd.Flags().SetInterspersed(false)

	return triageCmd
}

func runTriage(cmd *cobra.Command, args []string) error {
	log := rootCmdLogger.WithName("triage")
	executor := process.NewOSExecutor(log)

	var triager *gdb.Triager
	if triageScriptPath != "" {
		triager = gdb.NewExternalScriptTriager(log, executor, gdbPath, triageScriptPath)
	} else {
		t, err := gdb.NewTriager(log, executor, gdbPath)
		if err != nil {
			return err
		}
		triager = t
	}
	defer func() { _ = triager.Close() }()

	// Advisory only: a failed check usually means the triage run will fail
	// with a more specific error, which is more useful to the operator.
	if !triager.HasSupportedGdb(cmd.Context()) {
		log.Info("GDB sanity check failed, attempting triage anyway")
	}

	result, err := triager.TriageTestcase(cmd.Context(), args, showRawOutput)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
