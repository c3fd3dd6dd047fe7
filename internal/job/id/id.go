// Package id provides unique identifier generation for jobs.
package id

import (
	"github.com/google/uuid"
)

// prefix marks job ids in logs and workspace directory names.
const prefix = "job-"

// Generate creates a new unique job ID.
// Format: job-<uuid v4>
// Example: job-6f1c0b0e-3a7d-4c61-9d7e-2b8f0a1e5c44
func Generate() string {
	return prefix + uuid.NewString()
}

// Valid reports whether s looks like an id produced by Generate.
func Valid(s string) bool {
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return false
	}
	_, err := uuid.Parse(s[len(prefix):])
	return err == nil
}
