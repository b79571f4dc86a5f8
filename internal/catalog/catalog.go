// Package catalog serves karaoke tracks from a directory tree: one folder
// per track holding track.yaml, the two stems and optional images.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/singalong/internal/api"
)

const (
	MetadataFile     = "track.yaml"
	VocalsStem       = "vocals"
	InstrumentalStem = "no_vocals"
	ImagesDir        = "images"
)

var stemExtensions = []string{".wav", ".mp3"}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Metadata is the content of track.yaml
type Metadata struct {
	ID       string            `yaml:"id"`
	Title    string            `yaml:"title"`
	Artist   string            `yaml:"artist"`
	Key      string            `yaml:"key"`
	CoverURL string            `yaml:"cover_url,omitempty"`
	Lyrics   []api.KaraokeLine `yaml:"lyrics"`
}

// Entry is one track found on disk. Stem and image paths are relative to
// the catalog root with forward slashes.
type Entry struct {
	Metadata
	Folder       string
	Instrumental string
	Vocals       string
	Images       []string
}

// Catalog indexes the tracks under a root directory
type Catalog struct {
	root string

	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// Open scans root for tracks
func Open(root string) (*Catalog, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is not a directory", root)
	}
	c := &Catalog{root: root}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Root() string { return c.root }

// Reload rescans the root directory
func (c *Catalog) Reload() error {
	dirs, err := os.ReadDir(c.root)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	entries := make(map[string]Entry)
	var order []string
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		e, err := loadEntry(c.root, d.Name())
		if err != nil {
			slog.Warn("Skipping catalog folder", "folder", d.Name(), "error", err)
			continue
		}
		if _, dup := entries[e.ID]; dup {
			slog.Warn("Duplicate track id in catalog", "track_id", e.ID, "folder", d.Name())
			continue
		}
		entries[e.ID] = e
		order = append(order, e.ID)
	}

	c.mu.Lock()
	c.entries = entries
	c.order = order
	c.mu.Unlock()
	slog.Debug("Catalog loaded", "root", c.root, "tracks", len(order))
	return nil
}

func loadEntry(root, folder string) (Entry, error) {
	dir := filepath.Join(root, folder)
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read %s: %w", MetadataFile, err)
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return Entry{}, fmt.Errorf("failed to parse %s: %w", MetadataFile, err)
	}
	if meta.ID == "" {
		meta.ID = folder
	}

	e := Entry{
		Metadata:     meta,
		Folder:       folder,
		Instrumental: findStem(dir, folder, InstrumentalStem),
		Vocals:       findStem(dir, folder, VocalsStem),
	}
	if e.Instrumental == "" && e.Vocals == "" {
		return Entry{}, fmt.Errorf("no stems found")
	}
	e.Images = findImages(dir, folder)
	return e, nil
}

func findStem(dir, folder, name string) string {
	for _, ext := range stemExtensions {
		if _, err := os.Stat(filepath.Join(dir, name+ext)); err == nil {
			return folder + "/" + name + ext
		}
	}
	return ""
}

func findImages(dir, folder string) []string {
	files, err := os.ReadDir(filepath.Join(dir, ImagesDir))
	if err != nil {
		return nil
	}
	var images []string
	for _, f := range files {
		if f.IsDir() || !slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(f.Name()))) {
			continue
		}
		images = append(images, folder+"/"+ImagesDir+"/"+f.Name())
	}
	slices.Sort(images)
	return images
}

// Search returns tracks whose title or artist contains query, ignoring
// case. An empty query matches every track.
func (c *Catalog) Search(query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))

	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Entry
	for _, id := range c.order {
		e := c.entries[id]
		if q == "" ||
			strings.Contains(strings.ToLower(e.Title), q) ||
			strings.Contains(strings.ToLower(e.Artist), q) {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the track with the given id
func (c *Catalog) Get(id string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", api.ErrTrackNotFound, id)
	}
	return e, nil
}

// Folder returns the track whose folder is name
func (c *Catalog) Folder(name string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Folder == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: folder %s", api.ErrTrackNotFound, name)
}

// Len is the number of tracks
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
