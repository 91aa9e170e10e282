//
// Tencent is pleased to support the open source community by making fridabuild available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fridabuild is licensed under the Apache License Version 2.0.
//
//

package builder

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"trpc.group/trpc-go/fridabuild/log"
)

// StepError describes an external toolchain command that exited non-zero.
// Output carries the combined stdout/stderr of the failing command and
// becomes the body of the user-facing failure.
type StepError struct {
	Step   string
	Output string
	Err    error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("build step %s failed: %v", e.Step, e.Err)
}

// Unwrap returns the underlying execution error.
func (e *StepError) Unwrap() error { return e.Err }

// Runner executes external toolchain commands cwd-scoped to a workspace
// subdirectory, capturing combined output.
type Runner struct {
	// Timeout bounds each command when positive. Zero means no limit,
	// matching the toolchain's interactive behavior.
	Timeout time.Duration
}

// Run executes name with args in cwd and returns the combined
// stdout/stderr. A non-zero exit is surfaced as a *StepError carrying the
// captured output.
func (r *Runner) Run(ctx context.Context, cwd, name string, args ...string) (string, error) {
	log.Infof("running command: %s in %s",
		strings.Join(append([]string{name}, args...), " "), cwd)

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Dir = cwd
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := string(output)
		if detail == "" {
			detail = "No output captured from process."
		}
		log.Errorf("command %s failed: %v: %s", name, err, detail)
		return "", &StepError{Step: name, Output: detail, Err: err}
	}
	return string(output), nil
}
