package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// HashFiles identifies a set of input files by path, size and modification
// time. Contents are not read.
func HashFiles(paths ...string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("stat input: %w", err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", p, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Chain derives a stage's input hash from the previous stage's hash and any
// extra values that affect the stage's result.
func Chain(parent string, values ...any) (string, error) {
	h := sha256.New()
	h.Write([]byte(parent))
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("hash value: %w", err)
		}
		h.Write([]byte{0})
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
