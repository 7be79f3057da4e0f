// Package sourceset provides a deterministic, content-addressed view of the
// project files that participate in a build. Two source trees that differ
// only in excluded files (build outputs, VCS metadata) produce the same
// digest, so the digest is a stable cache key.
package sourceset

import (
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"
)

// SourceFile is a single file included in a SourceSet.
type SourceFile struct {
	// Path is the slash-separated path relative to the selector root.
	Path string
	// Hash is the hex-encoded blake3 hash of the file contents.
	Hash string
	// Size is the file size in bytes.
	Size int64
}

// SourceSet is an ordered collection of selected files. Files are sorted by
// path so iteration order and the digest are deterministic.
type SourceSet struct {
	Root  string
	Files []SourceFile
}

// Digest returns a hex-encoded blake3 hash identifying the set. Paths are
// NFC-normalized before hashing so digests agree across platforms that
// decompose filenames differently.
func (s *SourceSet) Digest() string {
	h := blake3.New()
	for _, f := range s.Files {
		h.Write([]byte(norm.NFC.String(f.Path)))
		h.Write([]byte{0})
		h.Write([]byte(f.Hash))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ManifestOnly returns the subset holding only dependency manifest files
// (Cargo.toml and Cargo.lock at any depth). This subset keys the dependency
// artifact cache: application code edits never appear in it.
func (s *SourceSet) ManifestOnly() *SourceSet {
	sub := &SourceSet{Root: s.Root}
	for _, f := range s.Files {
		if isManifest(f.Path) {
			sub.Files = append(sub.Files, f)
		}
	}
	return sub
}

// Lookup returns the entry for a relative path, if present.
func (s *SourceSet) Lookup(path string) (SourceFile, bool) {
	i := sort.Search(len(s.Files), func(i int) bool { return s.Files[i].Path >= path })
	if i < len(s.Files) && s.Files[i].Path == path {
		return s.Files[i], true
	}
	return SourceFile{}, false
}

// HashBytes returns the hex-encoded blake3 hash of a byte slice, using the
// same function as file content hashing.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func isManifest(path string) bool {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			base = path[i+1:]
			break
		}
	}
	return base == "Cargo.toml" || base == "Cargo.lock"
}
