package builder

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Requirement is one dependency manifest line: a package name and an
// optional version constraint (==1.2.3, >=1.0, ...).
type Requirement struct {
	Name       string
	Constraint string
}

var constraintOps = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

// ParseManifest reads a pip-style requirements list. Blank lines and
// comments are skipped. An empty manifest is an error: an image with no
// declared dependencies is a recipe mistake, not a valid build.
func ParseManifest(r io.Reader) ([]Requirement, error) {
	var reqs []Requirement
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		req := Requirement{Name: text}
		for _, op := range constraintOps {
			if i := strings.Index(text, op); i > 0 {
				req.Name = strings.TrimSpace(text[:i])
				req.Constraint = strings.TrimSpace(text[i:])
				break
			}
		}
		if req.Name == "" {
			return nil, fmt.Errorf("manifest line %d: missing package name", line)
		}
		reqs = append(reqs, req)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("manifest is empty")
	}
	return reqs, nil
}

// ParseManifestFile parses the manifest at path. A missing file fails the
// assembly before any image step runs.
func ParseManifestFile(path string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dependency manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f)
}
