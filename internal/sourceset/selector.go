package sourceset

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// DefaultExtensions is the allow-list of non-Rust file types that belong to
// a client build: markup, styles, scripts, structured config, text, images.
var DefaultExtensions = []string{
	".rs", ".html", ".css", ".scss", ".js", ".json", ".toml", ".txt", ".md",
	".png", ".svg", ".ico", ".webp", ".woff2",
}

// DefaultExcludeDirs are directory names never considered sources. Build
// outputs in particular must not feed back into the source digest.
var DefaultExcludeDirs = []string{
	"target", "dist", "build", "node_modules", ".git", ".biblebuild",
}

// Selector filters a project tree down to the files relevant to a build.
type Selector struct {
	Fs          afero.Fs
	Root        string
	Extensions  []string
	IncludeName []string // exact basenames always included (manifests, lockfiles)
	ExcludeDirs []string
	AssetsDir   string // optional subtree included wholesale; may be absent
}

// NewSelector returns a Selector with the default predicates over the OS
// filesystem.
func NewSelector(root string) *Selector {
	return &Selector{
		Fs:          afero.NewOsFs(),
		Root:        root,
		Extensions:  DefaultExtensions,
		IncludeName: []string{"Cargo.toml", "Cargo.lock"},
		ExcludeDirs: DefaultExcludeDirs,
	}
}

// Select walks the root and produces the SourceSet. The walk is pure: no
// file is created or modified. A missing root is an error; a missing assets
// directory is not.
func (s *Selector) Select() (*SourceSet, error) {
	if _, err := s.Fs.Stat(s.Root); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("source root %s does not exist", s.Root)
		}
		return nil, fmt.Errorf("stat source root %s: %w", s.Root, err)
	}

	set := &SourceSet{Root: s.Root}
	err := afero.Walk(s.Fs, s.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(s.Root, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel != "." && s.excludedDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.includes(rel, info.Name()) {
			return nil
		}
		hash, herr := s.hashFile(path)
		if herr != nil {
			return fmt.Errorf("hash %s: %w", rel, herr)
		}
		set.Files = append(set.Files, SourceFile{Path: rel, Hash: hash, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(set.Files, func(i, j int) bool { return set.Files[i].Path < set.Files[j].Path })
	slog.Debug("Source selection complete", "root", s.Root, "files", len(set.Files))
	return set, nil
}

func (s *Selector) excludedDir(name string) bool {
	for _, d := range s.ExcludeDirs {
		if name == d {
			return true
		}
	}
	return false
}

func (s *Selector) includes(rel, base string) bool {
	for _, n := range s.IncludeName {
		if base == n {
			return true
		}
	}
	if s.AssetsDir != "" {
		prefix := filepath.ToSlash(s.AssetsDir) + "/"
		if strings.HasPrefix(rel, prefix) {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range s.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (s *Selector) hashFile(path string) (string, error) {
	f, err := s.Fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
