package cache

import "time"

// Entry represents a cached probe result
type Entry struct {
	// Hash is the unique identifier for this cache entry
	// Computed from: compiler binary content + probe arguments
	Hash string `json:"hash"`

	// Compiler is the resolved path of the probed executable
	Compiler string `json:"compiler"`

	// CompilerHash is the SHA256 of the compiler binary
	CompilerHash string `json:"compiler_hash"`

	// Args are the probe arguments, excluding the executable
	Args []string `json:"args"`

	// Includes are the discovered include directories, in discovery order
	Includes []string `json:"includes"`

	// Timestamp when this entry was created
	Timestamp time.Time `json:"timestamp"`
}
