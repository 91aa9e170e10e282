//
// Tencent is pleased to support the open source community by making fridabuild available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fridabuild is licensed under the Apache License Version 2.0.
//
//

// Package builder orchestrates the external frida toolchain: it scaffolds a
// project with frida-create, populates the agent sources, installs
// dependencies with bun or npm, and bundles the agent with frida-compile.
// The steps run strictly in order and the first failure aborts the build.
package builder

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"trpc.group/trpc-go/fridabuild/log"
	"trpc.group/trpc-go/fridabuild/workspace"
)

// Input is the validated payload of one compile request. Exactly one of
// Snippet and Content is set.
type Input struct {
	// Snippet is inline script text.
	Snippet string
	// FileName is the uploaded file's name; a ".zip" suffix selects
	// archive handling.
	FileName string
	// Content is the uploaded file's bytes.
	Content []byte
}

// IsZip reports whether the upload is a zip archive.
func (in Input) IsZip() bool {
	return strings.HasSuffix(strings.ToLower(in.FileName), ".zip")
}

// Builder runs the build pipeline inside a workspace.
type Builder struct {
	runner  *Runner
	pm      string
	verbose bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithPackageManager pins the dependency manager instead of probing the
// host for bun.
func WithPackageManager(name string) Option {
	return func(b *Builder) { b.pm = name }
}

// WithCommandTimeout bounds every toolchain invocation. Zero keeps the
// toolchain's own pacing; a hung tool then hangs the request.
func WithCommandTimeout(d time.Duration) Option {
	return func(b *Builder) { b.runner.Timeout = d }
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{runner: &Runner{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// packageManager prefers bun when it is on the host, falling back to npm.
func (b *Builder) packageManager() string {
	if b.pm != "" {
		return b.pm
	}
	if _, err := exec.LookPath("bun"); err == nil {
		return "bun"
	}
	return "npm"
}

// Build runs the full pipeline and returns the path of the compiled bundle
// inside the workspace. The caller owns the workspace lifecycle; Build never
// removes it.
func (b *Builder) Build(ctx context.Context, ws workspace.Workspace, in Input) (string, error) {
	if _, err := b.runner.Run(ctx, ws.Root,
		"frida-create", "-t", "agent", "-o", "output"); err != nil {
		return "", err
	}

	if err := relaxTypeChecking(
		filepath.Join(ws.OutputDir(), tsconfigFileName)); err != nil {
		return "", err
	}

	if err := populate(ws, in); err != nil {
		return "", err
	}

	pm := b.packageManager()
	if _, err := b.runner.Run(ctx, ws.OutputDir(),
		pm, "install", "--ignore-scripts"); err != nil {
		return "", err
	}

	deps := collectBridgeDeps(ws.AgentDir())
	log.Infof("detected frida bridge deps: %v", deps)
	if len(deps) > 0 {
		args := []string{"add"}
		if pm != "bun" {
			args = []string{"install"}
		}
		args = append(args, deps...)
		if _, err := b.runner.Run(ctx, ws.OutputDir(), pm, args...); err != nil {
			return "", err
		}
	}

	if _, err := b.runner.Run(ctx, ws.OutputDir(),
		"frida-compile", "agent/"+EntryFileName,
		"-o", workspace.ArtifactName, "-c"); err != nil {
		return "", err
	}

	return ws.ArtifactPath(), nil
}

// Version returns the installed frida toolchain version.
func (b *Builder) Version(ctx context.Context) (string, error) {
	out, err := b.runner.Run(ctx, ".", "frida", "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
