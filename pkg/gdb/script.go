// Copyright (c) 2021, Qualcomm Innovation Center, Inc. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package gdb

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed gdb/triage.py
var internalTriageScript []byte

// triageScript is the source of the GDB Python script that walks the stack
// and prints the JSON payload. Either the embedded script materialized into a
// temporary file, or a caller-supplied path.
type triageScript interface {
	// scriptPath returns the filesystem location GDB sources the script from.
	scriptPath() (string, error)

	// Close releases any resources owned by the script source.
	Close() error
}

// internalScript owns a temporary file holding the embedded triage script.
// The file must stay alive for the lifetime of the Triager: GDB reopens it by
// path on every run, so removing it early is a defect.
type internalScript struct {
	file *os.File
}

func newInternalScript() (*internalScript, error) {
	f, err := os.CreateTemp("", "triage-*.py")
	if err != nil {
		return nil, fmt.Errorf("failed to create triage script file: %w", err)
	}

	if _, err := f.Write(internalTriageScript); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write triage script to '%s': %w", f.Name(), err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("failed to flush triage script to '%s': %w", f.Name(), err)
	}

	return &internalScript{file: f}, nil
}

func (s *internalScript) scriptPath() (string, error) {
	return s.file.Name(), nil
}

func (s *internalScript) Close() error {
	err := s.file.Close()
	if rmErr := os.Remove(s.file.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// externalScript is a caller-supplied script path. Known limitation: the
// driver has no code path that hands an external script to GDB yet, so
// resolving it reports ErrUnsupportedScriptLocation instead of a path.
type externalScript struct {
	path string
}

func (s *externalScript) scriptPath() (string, error) {
	return "", fmt.Errorf("%w: external script '%s'", ErrUnsupportedScriptLocation, s.path)
}

func (s *externalScript) Close() error {
	// The caller owns the file.
	return nil
}
