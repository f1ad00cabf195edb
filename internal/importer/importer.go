package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tollcheck/tollcheck/internal/model"
)

// ErrSchema is returned when an export does not have the expected columns.
var ErrSchema = errors.New("unexpected column schema")

// Parser converts a toll billing export into PassageRecords in input order.
type Parser interface {
	Parse(r io.Reader) ([]model.PassageRecord, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes an export file found in the input folder.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// Stem returns the file name without its extension.
func (f FileInfo) Stem() string {
	return strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers configured
// from opts.
func DefaultRegistry(opts AutoPASSOptions) *Registry {
	r := NewRegistry()
	r.Register(NewAutoPASSParser(opts))
	return r
}

// Scan returns the regular files in dir whose name matches pattern,
// case-insensitively, sorted by name. Subdirectories are not searched.
func Scan(dir, pattern string) ([]FileInfo, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input dir: %w", err)
	}

	lowerPattern := strings.ToLower(pattern)
	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(lowerPattern, strings.ToLower(e.Name())); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// ParseFile opens path and parses it with p.
func ParseFile(p Parser, path string) ([]model.PassageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}
