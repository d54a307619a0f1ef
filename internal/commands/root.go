// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package commands

import (
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/grant-h/AFLTriage/pkg/logger"
)

var (
	rootCmdLogger      logr.Logger
	rootCmdFlushLogger func()
)

func NewRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "afltriage",
		Short: "Triages crashing programs under GDB into structured crash reports",
		Long: `afltriage runs a crashing program invocation under GDB and converts the
debugger session into a machine-readable crash report: thread list, per-frame
symbols, arguments and locals, plus the program's own captured output.`,
		SilenceUsage: true,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			rootCmdFlushLogger()
		},
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	rootCmd.AddCommand(NewTriageCommand())
	rootCmd.AddCommand(NewCheckGdbCommand())
	rootCmd.AddCommand(NewVersionCommand())

	rootCmdLogger, rootCmdFlushLogger = logger.NewLogger(rootCmd.PersistentFlags())

	return rootCmd, nil
}
