package patternset

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/praetorian-inc/wmscan/pkg/types"
	"gopkg.in/yaml.v3"
)

// Loader reads pattern sets from YAML.
type Loader struct {
	fs fs.FS // source of built-in sets
}

// NewLoader returns a loader whose built-in sets come from the embedded files.
func NewLoader() *Loader {
	return &Loader{fs: builtinFS}
}

// NewLoaderWithFS returns a loader whose built-in sets are read from the
// sets/ directory of fsys.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{fs: fsys}
}

// LoadSets parses every set in a YAML document and validates them (see
// ValidateAll).
func (l *Loader) LoadSets(data []byte) ([]*types.PatternSet, error) {
	var file yamlSetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Sets) == 0 {
		return nil, fmt.Errorf("no pattern sets found in YAML")
	}

	sets := make([]*types.PatternSet, 0, len(file.Sets))
	for _, ys := range file.Sets {
		set, err := convertYAMLSet(ys)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if err := ValidateAll(sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// LoadFile loads the sets of one YAML file.
func (l *Loader) LoadFile(path string) ([]*types.PatternSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	sets, err := l.LoadSets(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sets, nil
}

// LoadPath loads a single file, or every .yml and .yaml file below a
// directory in lexical order. Set IDs must be unique across files.
func (l *Loader) LoadPath(path string) ([]*types.PatternSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return l.LoadFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isYAML(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", path, err)
	}
	sort.Strings(files)

	var sets []*types.PatternSet
	for _, f := range files {
		loaded, err := l.LoadFile(f)
		if err != nil {
			return nil, err
		}
		sets = append(sets, loaded...)
	}
	if err := ValidateAll(sets); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sets, nil
}

// LoadBuiltin loads every set under sets/ of the loader's filesystem.
func (l *Loader) LoadBuiltin() ([]*types.PatternSet, error) {
	var sets []*types.PatternSet

	err := fs.WalkDir(l.fs, "sets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		loaded, err := l.LoadSets(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		sets = append(sets, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ValidateAll(sets); err != nil {
		return nil, err
	}
	return sets, nil
}

func isYAML(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yml" || ext == ".yaml"
}

// convertYAMLSet builds a PatternSet and computes pattern structural IDs.
func convertYAMLSet(ys yamlSet) (*types.PatternSet, error) {
	set := &types.PatternSet{
		ID:          ys.ID,
		Name:        ys.Name,
		Description: ys.Description,
		Algorithm:   ys.Algorithm,
		BlockSize:   ys.BlockSize,
		Keywords:    ys.Keywords,
	}
	if set.Name == "" {
		set.Name = set.ID
	}
	if set.Algorithm == "" {
		set.Algorithm = "wm"
	}

	for _, yp := range ys.Patterns {
		p, err := convertYAMLPattern(yp)
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", ys.ID, err)
		}
		set.Patterns = append(set.Patterns, p)
	}
	for i, lit := range ys.Literals {
		p := &types.Pattern{
			ID:      ys.ID + "." + strconv.Itoa(i+1),
			Name:    lit,
			Literal: []byte(lit),
		}
		p.StructuralID = p.ComputeStructuralID()
		set.Patterns = append(set.Patterns, p)
	}
	return set, nil
}

func convertYAMLPattern(yp yamlPattern) (*types.Pattern, error) {
	p := &types.Pattern{
		ID:          yp.ID,
		Name:        yp.Name,
		Description: yp.Description,
		Categories:  yp.Categories,
	}

	switch {
	case yp.Literal != nil && yp.LiteralHex != "":
		return nil, fmt.Errorf("pattern %s: literal and literal_hex are mutually exclusive", yp.ID)
	case yp.Literal != nil:
		p.Literal = []byte(*yp.Literal)
	case yp.LiteralHex != "":
		lit, err := hex.DecodeString(yp.LiteralHex)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: invalid literal_hex: %w", yp.ID, err)
		}
		p.Literal = lit
	}

	if p.Name == "" {
		p.Name = p.ID
	}
	p.StructuralID = p.ComputeStructuralID()
	return p, nil
}
