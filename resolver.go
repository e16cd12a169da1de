package btrc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IncludeLoader abstracts where #include "..." payloads come from, so
// resolution works the same against the filesystem and in tests.
type IncludeLoader interface {
	// GetPath resolves an include spelling against the including
	// file's path.
	GetPath(includePath, parentPath string) (string, error)

	// GetContent reads the resolved file.
	GetContent(path string) ([]byte, error)
}

// SearchPathLoader resolves quoted includes relative to the including
// file first, then through a stdlib search path.
type SearchPathLoader struct {
	SearchPaths []string
}

func NewSearchPathLoader(paths ...string) *SearchPathLoader {
	return &SearchPathLoader{SearchPaths: paths}
}

func (l *SearchPathLoader) GetPath(includePath, parentPath string) (string, error) {
	relative := filepath.Join(filepath.Dir(parentPath), includePath)
	if _, err := os.Stat(relative); err == nil {
		return relative, nil
	}
	for _, dir := range l.SearchPaths {
		candidate := filepath.Join(dir, includePath)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("include not found: %s", includePath)
}

func (l *SearchPathLoader) GetContent(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// InMemoryIncludeLoader serves includes from a fixed map; tests and
// the completion-data exporter use it.
type InMemoryIncludeLoader struct {
	files map[string][]byte
}

func NewInMemoryIncludeLoader() *InMemoryIncludeLoader {
	return &InMemoryIncludeLoader{files: map[string][]byte{}}
}

func (l *InMemoryIncludeLoader) Add(path string, content []byte) {
	l.files[path] = content
}

func (l *InMemoryIncludeLoader) GetPath(includePath, parentPath string) (string, error) {
	if _, ok := l.files[includePath]; ok {
		return includePath, nil
	}
	joined := filepath.Join(filepath.Dir(parentPath), includePath)
	if _, ok := l.files[joined]; ok {
		return joined, nil
	}
	return "", fmt.Errorf("include not found: %s", includePath)
}

func (l *InMemoryIncludeLoader) GetContent(path string) ([]byte, error) {
	content, ok := l.files[path]
	if !ok {
		return nil, fmt.Errorf("include not found: %s", path)
	}
	return content, nil
}

// ResolveIncludes inlines every #include "..." directive in text,
// recursively, with cycle protection. Angle-bracket includes pass
// through untouched — those are the C compiler's problem.
func ResolveIncludes(text, originPath string, loader IncludeLoader) (string, error) {
	return resolveIncludes(text, originPath, loader, map[string]bool{})
}

func resolveIncludes(text, originPath string, loader IncludeLoader, visited map[string]bool) (string, error) {
	var out strings.Builder
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#include") {
			out.WriteString(line)
			out.WriteString("\n")
			continue
		}
		rest := strings.TrimSpace(trimmed[len("#include"):])
		if len(rest) < 2 || rest[0] != '"' {
			out.WriteString(line)
			out.WriteString("\n")
			continue
		}
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			out.WriteString(line)
			out.WriteString("\n")
			continue
		}
		includePath := rest[1 : 1+end]

		path, err := loader.GetPath(includePath, originPath)
		if err != nil {
			return "", err
		}
		if visited[path] {
			continue // already inlined somewhere up the chain
		}
		visited[path] = true

		content, err := loader.GetContent(path)
		if err != nil {
			return "", err
		}
		resolved, err := resolveIncludes(string(content), path, loader, visited)
		if err != nil {
			return "", err
		}
		out.WriteString(resolved)
	}
	return strings.TrimSuffix(out.String(), "\n") + "\n", nil
}
