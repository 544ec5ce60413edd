package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"story-server/internal/domain"
)

// Files guaranteed to exist in a catalogued story directory. Everything else
// (wav/jpg assets) is best-effort and may be absent after stage failures.
const (
	StructureFile  = "structure.json"
	ParagraphsFile = "paragraphs.json"
	MusicFile      = "music"
	ThumbnailFile  = "thumbnail.jpg"
)

// AssetKind names one kind of generated asset inside a story directory.
type AssetKind string

const (
	AssetNarration AssetKind = "narration"
	AssetEffect    AssetKind = "effect"
	AssetMusic     AssetKind = "music"
	AssetImage     AssetKind = "image"
	AssetThumbnail AssetKind = "thumbnail"
)

// AssetFileName computes the canonical filename for (kind, index). Index is
// 1-based and ignored for the single-file kinds.
func AssetFileName(kind AssetKind, index int) string {
	switch kind {
	case AssetNarration:
		return fmt.Sprintf("paragraph_%d.wav", index)
	case AssetEffect:
		return fmt.Sprintf("audio_%d.wav", index)
	case AssetMusic:
		return MusicFile
	case AssetThumbnail:
		return ThumbnailFile
	case AssetImage:
		return fmt.Sprintf("image_%d.jpg", index)
	}
	return string(kind)
}

// Store resolves canonical content-store paths under a single data root and
// reads/writes story files. It holds no generation logic: paths are
// deterministic functions of (story directory, kind, index), writes are full
// overwrites, and a missing structure.json/paragraphs.json is the caller's
// error to handle.
type Store struct {
	root string // absolute
}

// New creates a store rooted at dataRoot, creating the directory if needed.
func New(dataRoot string) (*Store, error) {
	abs, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute data root.
func (s *Store) Root() string { return s.root }

// StoryPath returns the relative content-store path of a story directory,
// "<username>/stories/<n>". The same form is stored in the catalog and used
// in client-facing URLs.
func (s *Store) StoryPath(username string, index int) string {
	return path.Join(username, "stories", strconv.Itoa(index))
}

// ScratchPath returns the per-user scratch area used by the ad-hoc
// single-asset endpoints, outside any story directory.
func (s *Store) ScratchPath(username string) string {
	return path.Join(username, "scratch")
}

// Abs resolves a relative content-store path to an absolute one, rejecting
// anything that escapes the data root.
func (s *Store) Abs(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty content-store path", domain.ErrInvalidInput)
	}
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	cleaned := filepath.Clean(abs)
	if cleaned != s.root && !strings.HasPrefix(cleaned, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes data root", domain.ErrInvalidInput)
	}
	return cleaned, nil
}

// EnsureDir creates the directory at the relative path.
func (s *Store) EnsureDir(rel string) error {
	abs, err := s.Abs(rel)
	if err != nil {
		return err
	}
	return os.MkdirAll(abs, 0o755)
}

// DirExists reports whether the directory at the relative path exists.
func (s *Store) DirExists(rel string) bool {
	abs, err := s.Abs(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.IsDir()
}

// FileExists reports whether the named file exists inside the directory.
func (s *Store) FileExists(rel, name string) bool {
	abs, err := s.Abs(path.Join(rel, name))
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

// WriteAsset writes one generated asset into the story directory. Writing the
// same (kind, index) twice is a full overwrite, never an append.
func (s *Store) WriteAsset(rel string, kind AssetKind, index int, data []byte) error {
	return s.WriteFile(rel, AssetFileName(kind, index), data)
}

// WriteFile writes an arbitrary file into the directory at the relative path.
func (s *Store) WriteFile(rel, name string, data []byte) error {
	abs, err := s.Abs(path.Join(rel, name))
	if err != nil {
		return err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// ReadFile reads a file from the directory at the relative path.
func (s *Store) ReadFile(rel, name string) ([]byte, error) {
	abs, err := s.Abs(path.Join(rel, name))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, domain.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// WriteJSON serializes v into the named file with a full overwrite.
func (s *Store) WriteJSON(rel, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return s.WriteFile(rel, name, data)
}

// ReadJSON reads and deserializes the named JSON file. A missing file yields
// domain.ErrNotFound for the caller to handle.
func (s *Store) ReadJSON(rel, name string, v any) error {
	data, err := s.ReadFile(rel, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// WriteStructure persists the structural document of a story.
func (s *Store) WriteStructure(rel string, doc map[string]string) error {
	return s.WriteJSON(rel, StructureFile, doc)
}

// ReadStructure reads the structural document of a story.
func (s *Store) ReadStructure(rel string) (map[string]string, error) {
	var doc map[string]string
	if err := s.ReadJSON(rel, StructureFile, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// WriteParagraphs persists the authoritative narration text list.
func (s *Store) WriteParagraphs(rel string, paragraphs []string) error {
	return s.WriteJSON(rel, ParagraphsFile, paragraphs)
}

// ReadParagraphs reads the narration text list of a story.
func (s *Store) ReadParagraphs(rel string) ([]string, error) {
	var paragraphs []string
	if err := s.ReadJSON(rel, ParagraphsFile, &paragraphs); err != nil {
		return nil, err
	}
	return paragraphs, nil
}

// FindByPrefix returns the base name of the first file in the directory
// whose name starts with prefix, in lexical order. Used by the asset-fetch
// endpoint, where clients address assets by logical name without extension;
// the caller reads the file with ReadFile(rel, name).
func (s *Store) FindByPrefix(rel, prefix string) (string, error) {
	if prefix == "" || strings.ContainsAny(prefix, "/\\") {
		return "", fmt.Errorf("%w: bad asset name", domain.ErrInvalidInput)
	}
	abs, err := s.Abs(rel)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", rel, domain.ErrNotFound)
		}
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%s: %w", prefix, domain.ErrNotFound)
	}
	sort.Strings(names)
	return names[0], nil
}

// RemoveTree recursively deletes the directory at the relative path. A plain
// tree walk with no special casing; callers are the maintenance sweep and
// explicit story/user deletion.
func (s *Store) RemoveTree(rel string) error {
	abs, err := s.Abs(rel)
	if err != nil {
		return err
	}
	if abs == s.root {
		return fmt.Errorf("%w: refusing to remove data root", domain.ErrInvalidInput)
	}
	return os.RemoveAll(abs)
}

// ListUsers returns the usernames that have a directory under the data root.
func (s *Store) ListUsers() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var users []string
	for _, e := range entries {
		if e.IsDir() {
			users = append(users, e.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}

// ListStoryDirs returns the relative paths of all story directories of one
// user, in lexical order. Missing stories root is not an error.
func (s *Store) ListStoryDirs(username string) ([]string, error) {
	abs, err := s.Abs(path.Join(username, "stories"))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, path.Join(username, "stories", e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
