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
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ds "github.com/bmatcuk/doublestar/v4"

	"trpc.group/trpc-go/fridabuild/bridge"
	"trpc.group/trpc-go/fridabuild/log"
	"trpc.group/trpc-go/fridabuild/workspace"
)

const (
	// EntryFileName is the agent entry point frida-compile is pointed at.
	EntryFileName = "index.ts"

	dirPerm  = 0o755
	filePerm = 0o644

	// maxScriptBytes caps a single extracted zip member.
	maxScriptBytes = 16 << 20
)

// ErrMissingEntry reports a populated agent directory without the required
// entry-point script.
var ErrMissingEntry = errors.New("ZIP must contain an index.ts file")

func isScriptName(name string) bool {
	return strings.HasSuffix(name, ".ts") || strings.HasSuffix(name, ".js")
}

// populate clears any scaffold-generated entry scripts from the agent
// directory and fills it from the request input, running every script
// through the bridge import injector.
func populate(ws workspace.Workspace, in Input) error {
	agentDir := ws.AgentDir()
	if err := clearAgentScripts(agentDir); err != nil {
		return err
	}

	switch {
	case in.Snippet != "":
		return writeEntryScript(agentDir, in.Snippet)
	case in.IsZip():
		if err := extractScripts(agentDir, in.Content); err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(agentDir, EntryFileName)); err != nil {
			return ErrMissingEntry
		}
		injectScripts(agentDir)
		return nil
	default:
		return writeEntryScript(agentDir, string(in.Content))
	}
}

// clearAgentScripts removes scaffold default .ts files so their content
// never leaks into the final build.
func clearAgentScripts(agentDir string) error {
	if _, err := os.Stat(agentDir); errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(agentDir, dirPerm)
	}
	matches, err := filepath.Glob(filepath.Join(agentDir, "*.ts"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return err
		}
	}
	return nil
}

func writeEntryScript(agentDir, source string) error {
	fixed := bridge.Inject(source)
	target := filepath.Join(agentDir, EntryFileName)
	return os.WriteFile(target, []byte(fixed), filePerm)
}

// extractScripts writes the script-like members of a zip archive into
// agentDir. Member paths are flattened to their base names, which discards
// any directory components a crafted archive could use for path traversal.
func extractScripts(agentDir string, data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("read zip archive: %w", err)
	}
	for _, f := range zr.File {
		name := path.Base(f.Name)
		if name == "." || name == "/" || f.FileInfo().IsDir() {
			continue
		}
		if !isScriptName(name) {
			continue
		}
		if err := extractScript(f, filepath.Join(agentDir, name)); err != nil {
			return err
		}
	}
	return nil
}

func extractScript(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	defer out.Close()
	n, err := io.Copy(out, io.LimitReader(rc, maxScriptBytes+1))
	if err != nil {
		return err
	}
	if n > maxScriptBytes {
		return fmt.Errorf("zip entry too large: %q", f.Name)
	}
	return nil
}

// injectScripts runs the bridge import injector over every script in
// agentDir. Per-file failures are logged and skipped; the original file is
// left untouched, matching the best-effort nature of the heuristic.
func injectScripts(agentDir string) {
	for _, p := range scriptPaths(agentDir) {
		original, err := os.ReadFile(p)
		if err != nil {
			log.Warnf("failed to auto-inject imports for %s: %v", p, err)
			continue
		}
		fixed := bridge.Inject(string(original))
		if fixed == string(original) {
			continue
		}
		if err := os.WriteFile(p, []byte(fixed), filePerm); err != nil {
			log.Warnf("failed to auto-inject imports for %s: %v", p, err)
		}
	}
}

// collectBridgeDeps scans every script under agentDir for bridge imports and
// returns the distinct module names, sorted for deterministic install
// commands.
func collectBridgeDeps(agentDir string) []string {
	set := make(map[string]struct{})
	for _, p := range scriptPaths(agentDir) {
		text, err := os.ReadFile(p)
		if err != nil {
			log.Warnf("failed to scan %s for bridge deps: %v", p, err)
			continue
		}
		for dep := range bridge.Imports(string(text)) {
			set[dep] = struct{}{}
		}
	}
	deps := make([]string, 0, len(set))
	for dep := range set {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// scriptPaths globs agentDir recursively for .ts and .js files.
func scriptPaths(agentDir string) []string {
	var paths []string
	for _, pattern := range []string{"**/*.ts", "**/*.js"} {
		matches, err := ds.Glob(os.DirFS(agentDir), pattern)
		if err != nil {
			log.Warnf("glob %s in %s: %v", pattern, agentDir, err)
			continue
		}
		for _, m := range matches {
			paths = append(paths, filepath.Join(agentDir, filepath.FromSlash(m)))
		}
	}
	return paths
}

// zipHasEntryScript reports whether the archive contains the entry-point
// script under any path. A malformed archive is reported as an error so the
// caller can distinguish bad input structure from a missing entry.
func zipHasEntryScript(data []byte) (bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false, fmt.Errorf("read zip archive: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if path.Base(f.Name) == EntryFileName {
			return true, nil
		}
	}
	return false, nil
}

// ValidateZip checks an uploaded archive for the required entry-point script
// without extracting it, so a bad upload is rejected before any external
// command runs. It returns ErrMissingEntry when the entry is absent.
func ValidateZip(data []byte) error {
	ok, err := zipHasEntryScript(data)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMissingEntry
	}
	return nil
}
