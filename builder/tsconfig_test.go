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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRelaxTypeChecking_DisablesStrict(t *testing.T) {
	path := filepath.Join(t.TempDir(), tsconfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(
		`{"compilerOptions":{"strict":true,"target":"es2020"}}`), 0o644))

	require.NoError(t, relaxTypeChecking(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var config map[string]any
	require.NoError(t, json.Unmarshal(data, &config))
	opts := config["compilerOptions"].(map[string]any)
	require.Equal(t, false, opts["strict"])
	require.Equal(t, "es2020", opts["target"])
}

func TestRelaxTypeChecking_MissingFileIsNotAnError(t *testing.T) {
	require.NoError(t, relaxTypeChecking(
		filepath.Join(t.TempDir(), tsconfigFileName)))
}

func TestRelaxTypeChecking_NoCompilerOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), tsconfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"include":["agent"]}`), 0o644))

	require.NoError(t, relaxTypeChecking(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "agent")
}

func TestRelaxTypeChecking_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), tsconfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))

	require.Error(t, relaxTypeChecking(path))
}
