// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package util

import (
	"os"
	"path/filepath"
)

// WritablePath returns the base directory for files the server writes at
// runtime (logs, local databases). Resolution order: LIFEHUB_DATA_DIR, then
// ~/.lifehub, then empty (callers fall back to the working directory).
func WritablePath() string {
	if dir := os.Getenv("LIFEHUB_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".lifehub")
}
