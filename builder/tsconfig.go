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
	"errors"
	"io/fs"
	"os"

	"trpc.group/trpc-go/fridabuild/log"
)

const tsconfigFileName = "tsconfig.json"

// relaxTypeChecking disables the strict compiler flag in a scaffold-generated
// tsconfig so user snippets are not rejected by type checking. A missing file
// is not an error; the step is best-effort by contract.
func relaxTypeChecking(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return err
	}
	opts, ok := config["compilerOptions"].(map[string]any)
	if !ok {
		return nil
	}
	opts["strict"] = false

	out, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, filePerm); err != nil {
		return err
	}
	log.Infof("disabled strict mode in %s", path)
	return nil
}
