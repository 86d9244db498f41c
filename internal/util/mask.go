// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package util carries small helpers shared across the server.
package util

// MaskAPIKey renders a secret for logs, keeping just enough of the ends to
// recognize which key was used: "sk-9...0RHO". Short keys are fully masked.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
