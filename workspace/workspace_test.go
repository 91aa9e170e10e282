//
// Tencent is pleased to support the open source community by making fridabuild available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fridabuild is licensed under the Apache License Version 2.0.
//
//

package workspace

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocate_CreatesUniqueDirs(t *testing.T) {
	m := NewManager(WithTempRoot(t.TempDir()))

	a, err := m.Allocate()
	require.NoError(t, err)
	b, err := m.Allocate()
	require.NoError(t, err)

	require.NotEqual(t, a.Root, b.Root)
	require.DirExists(t, a.Root)
	require.DirExists(t, b.Root)
	require.Equal(t, filepath.Base(a.Root), a.ID)

	m.Release(a)
	m.Release(b)
}

func TestWorkspace_Layout(t *testing.T) {
	ws := Workspace{ID: "abc", Root: filepath.Join("/tmp", "frida_builds", "abc")}
	require.Equal(t, filepath.Join(ws.Root, "output"), ws.OutputDir())
	require.Equal(t, filepath.Join(ws.Root, "output", "agent"), ws.AgentDir())
	require.Equal(t, filepath.Join(ws.Root, "output", ArtifactName), ws.ArtifactPath())
}

func TestRelease_RemovesTree(t *testing.T) {
	m := NewManager(WithTempRoot(t.TempDir()))
	ws, err := m.Allocate()
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(ws.AgentDir(), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(ws.AgentDir(), "index.ts"), []byte("x"), 0o644))

	m.Release(ws)
	require.NoDirExists(t, ws.Root)
}

func TestRelease_MissingPathIsHarmless(t *testing.T) {
	m := NewManager(WithTempRoot(t.TempDir()))
	m.Release(Workspace{ID: "gone", Root: filepath.Join(t.TempDir(), "gone")})
	m.Release(Workspace{})
}

func TestAllocate_ConcurrentRequestsNeverCollide(t *testing.T) {
	m := NewManager(WithTempRoot(t.TempDir()))

	const n = 16
	roots := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws, err := m.Allocate()
			roots[i], errs[i] = ws.Root, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, root := range roots {
		require.NoError(t, errs[i])
		require.False(t, seen[root], "workspace path reused: %s", root)
		seen[root] = true
	}
}
