// Package id provides unique identifier generation for clips.
package id

import "github.com/google/uuid"

// Generate creates a new unique clip ID.
// Format: clip-<uuidv7>, so IDs sort by creation time.
// Example: clip-0190b6a2-6f3e-7c4a-9d1e-2f5b8a7c6d40
func Generate() string {
	u, err := uuid.NewV7()
	if err != nil {
		// Fall back to a random UUID if the time-ordered one cannot be built
		return "clip-" + uuid.NewString()
	}
	return "clip-" + u.String()
}
