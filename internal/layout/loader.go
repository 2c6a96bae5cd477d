package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/docsync/internal/parser"
	"gopkg.in/yaml.v3"
)

// DefinitionFile is the name of the layout definition inside a layout directory.
const DefinitionFile = "layout.yaml"

// Definition is the on-disk form of a layout.
type Definition struct {
	Default string      `yaml:"default"`
	Blocks  []BlockFile `yaml:"blocks"`
}

// BlockFile points a block name at its template file, relative to the
// layout directory.
type BlockFile struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

// Loader reads layouts from <Dir>/<name>/layout.yaml.
type Loader struct {
	Dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

// Load reads and parses a layout and all of its block templates.
func (l *Loader) Load(name string) (*Layout, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, &NotFoundError{Kind: "layout", Name: name}
	}
	dir := filepath.Join(l.Dir, name)

	raw, err := os.ReadFile(filepath.Join(dir, DefinitionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Kind: "layout", Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("read layout %q: %w", name, err)
	}

	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse layout %q: %w", name, err)
	}

	blocks := make([]*Block, 0, len(def.Blocks))
	for _, bf := range def.Blocks {
		b, err := loadBlock(dir, bf)
		if err != nil {
			return nil, fmt.Errorf("layout %q: %w", name, err)
		}
		blocks = append(blocks, b)
	}
	return New(name, blocks, def.Default)
}

// LoadOrEmpty loads a layout, degrading to an empty layout when it cannot be
// read. The returned warning is empty on success.
func (l *Loader) LoadOrEmpty(name string) (*Layout, string) {
	lay, err := l.Load(name)
	if err == nil {
		return lay, ""
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return Empty(name), fmt.Sprintf("%s; using an empty layout", nf.Error())
	}
	return Empty(name), fmt.Sprintf("layout %q unusable (%s); using an empty layout", name, err)
}

// List returns the names of all layout directories with a definition file.
func (l *Loader) List() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(l.Dir, e.Name(), DefinitionFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func loadBlock(dir string, bf BlockFile) (*Block, error) {
	if bf.File == "" || filepath.IsAbs(bf.File) || strings.Contains(filepath.ToSlash(bf.File), "../") {
		return nil, &NotFoundError{Kind: "block", Name: bf.Name}
	}
	if !parser.IsSupportedExtension(bf.File) {
		return nil, fmt.Errorf("block %q: unsupported template file %q", bf.Name, bf.File)
	}
	p, err := parser.ForFile(bf.File)
	if err != nil {
		return nil, fmt.Errorf("block %q: %w", bf.Name, err)
	}
	f, err := os.Open(filepath.Join(dir, bf.File))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Kind: "block", Name: bf.Name}
	}
	if err != nil {
		return nil, fmt.Errorf("open block %q: %w", bf.Name, err)
	}
	defer f.Close()

	frag, err := p.Parse(f, bf.File)
	if err != nil {
		return nil, fmt.Errorf("parse block %q: %w", bf.Name, err)
	}
	return &Block{Name: bf.Name, Fragment: frag}, nil
}
