package syncengine

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// skipDirs names build/dependency folders excluded by convention regardless
// of depth (§4.D "Discovery").
var skipDirs = map[string]bool{
	"target":       true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	".venv":        true,
	"__pycache__":  true,
	".git":         true,
}

// DefaultMaxFileSize is the size ceiling a discovered file must stay under
// to be considered for parsing.
const DefaultMaxFileSize = 2 << 20 // 2 MiB

// sniffWindow is how many leading bytes are inspected for a NUL byte when
// deciding whether a file is binary.
const sniffWindow = 512

// discover walks root, returning every project-relative path that passes
// the hidden-dir, build-dir, size, and binary-content filters. The
// dispatcher decides language eligibility; unknown extensions are kept out
// of the candidate set here too, since there's no point hashing a file no
// parser will ever touch.
func (e *Engine) discover(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries, don't abort the whole walk
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if _, ok := e.dispatcher.Lookup(rel); !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > e.maxFileSize {
			return nil
		}
		if looksBinary(path) {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// looksBinary sniffs the first sniffWindow bytes for a NUL byte, the same
// heuristic git and most text tools use to classify a file as binary.
func looksBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()
	buf := make([]byte, sniffWindow)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) != -1
}
