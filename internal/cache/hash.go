package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/Norgate-AV/cdbpatch/internal/compiler"
)

// HashProbe creates a unique hash for a probe command
// The hash is based on:
// - Compiler binary content hash
// - The compiler as invoked, since drivers pick their target from argv[0]
// - Probe arguments, in order
func HashProbe(compilerHash string, key compiler.ProbeKey) string {
	h := sha256.New()

	h.Write([]byte(compilerHash))
	for _, arg := range key {
		h.Write([]byte{0})
		h.Write([]byte(arg))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// HashFile creates a hash of a file's content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
