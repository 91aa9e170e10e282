//
// Tencent is pleased to support the open source community by making fridabuild available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fridabuild is licensed under the Apache License Version 2.0.
//
//

// Package workspace manages the isolated per-request build directories.
// Every compile request gets its own uuid-keyed directory tree under the
// temp root, so concurrent requests never share files.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"trpc.group/trpc-go/fridabuild/log"
)

const (
	buildsDirName = "frida_builds"
	outputDirName = "output"
	agentDirName  = "agent"

	// ArtifactName is the file name frida-compile writes the bundled
	// agent to inside the output directory.
	ArtifactName = "_agent.js"

	dirPerm = 0o755
)

// Workspace is one request's build directory tree. It is owned exclusively
// by the handling request and removed before the handler returns.
type Workspace struct {
	// ID is the generated unique identifier of the build request.
	ID string
	// Root is {tempRoot}/frida_builds/{ID}.
	Root string
}

// OutputDir returns the directory the scaffold generator materializes the
// project skeleton into.
func (w Workspace) OutputDir() string {
	return filepath.Join(w.Root, outputDirName)
}

// AgentDir returns the directory holding the agent source files.
func (w Workspace) AgentDir() string {
	return filepath.Join(w.OutputDir(), agentDirName)
}

// ArtifactPath returns the path of the compiled bundle.
func (w Workspace) ArtifactPath() string {
	return filepath.Join(w.OutputDir(), ArtifactName)
}

// Manager allocates and releases workspaces.
type Manager struct {
	tempRoot string
}

// Option configures a Manager.
type Option func(*Manager)

// WithTempRoot overrides the temp root the build directories are created
// under. When empty, os.TempDir() is used.
func WithTempRoot(root string) Option {
	return func(m *Manager) { m.tempRoot = root }
}

// NewManager creates a workspace Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allocate creates a fresh workspace directory keyed by a new uuid.
// A filesystem failure here is fatal for the owning request.
func (m *Manager) Allocate() (Workspace, error) {
	base := m.tempRoot
	if base == "" {
		base = os.TempDir()
	}
	id := uuid.NewString()
	root := filepath.Join(base, buildsDirName, id)
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return Workspace{}, fmt.Errorf("create workspace %s: %w", root, err)
	}
	return Workspace{ID: id, Root: root}, nil
}

// Release removes the workspace tree. Failures are logged and swallowed:
// a leaked temp directory is an acceptable degraded outcome, never a
// request-visible error. Must be called exactly once per allocation, on
// every exit path of the owning request.
func (m *Manager) Release(ws Workspace) {
	if ws.Root == "" {
		return
	}
	if err := os.RemoveAll(ws.Root); err != nil {
		log.Errorf("failed to cleanup workspace %s: %v", ws.Root, err)
		return
	}
	log.Infof("cleaned up workspace %s", ws.Root)
}
