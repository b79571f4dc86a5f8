package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/audiolibrelab/singalong/internal/api"
	"github.com/audiolibrelab/singalong/internal/audio"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestSeed_CreatesPlayableDemo(t *testing.T) {
	root := t.TempDir()
	dir, err := Seed(root, 800)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	c, err := Open(root)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	e, err := c.Get(DemoID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(e.Lyrics) != 4 || e.Lyrics[0].Text != "Twinkle twinkle little star" {
		t.Errorf("Unexpected demo lyrics: %+v", e.Lyrics)
	}
	if e.Vocals != DemoID+"/vocals.wav" || e.Instrumental != DemoID+"/no_vocals.wav" {
		t.Errorf("Unexpected stem paths: %s, %s", e.Vocals, e.Instrumental)
	}

	data, err := os.ReadFile(filepath.Join(dir, "vocals.wav"))
	if err != nil {
		t.Fatalf("Failed to read vocals: %v", err)
	}
	buf, err := audio.Decode(data, 800, audio.DefaultResampleQuality)
	if err != nil {
		t.Fatalf("Seeded vocals do not decode: %v", err)
	}
	if buf.Duration() < e.Lyrics[len(e.Lyrics)-1].End {
		t.Errorf("Expected stems to cover the lyrics, got %vs", buf.Duration())
	}

	// seeding again keeps the existing demo
	if _, err := Seed(root, 800); err != nil {
		t.Errorf("Second Seed failed: %v", err)
	}
}

func TestCatalog_SearchAndGet(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "queen", MetadataFile), "id: q1\ntitle: Bohemian Rhapsody\nartist: Queen\nkey: Bb\n")
	writeFile(t, filepath.Join(root, "queen", "vocals.mp3"), "x")
	writeFile(t, filepath.Join(root, "queen", "images", "b.jpg"), "x")
	writeFile(t, filepath.Join(root, "queen", "images", "a.PNG"), "x")
	writeFile(t, filepath.Join(root, "queen", "images", "notes.txt"), "x")
	writeFile(t, filepath.Join(root, "abba", MetadataFile), "title: Dancing Queen\nartist: ABBA\n")
	writeFile(t, filepath.Join(root, "abba", "no_vocals.wav"), "x")
	writeFile(t, filepath.Join(root, "broken", MetadataFile), "title: [unterminated\n")
	writeFile(t, filepath.Join(root, "silent", MetadataFile), "title: No Stems\n")

	c, err := Open(root)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 tracks, got %d", c.Len())
	}

	if got := c.Search("QUEEN"); len(got) != 2 {
		t.Errorf("Expected title and artist matches for queen, got %d", len(got))
	}
	if got := c.Search("abba"); len(got) != 1 || got[0].ID != "abba" {
		t.Errorf("Expected folder name as default id, got %+v", got)
	}
	if got := c.Search(""); len(got) != 2 {
		t.Errorf("Expected empty query to list all, got %d", len(got))
	}
	if got := c.Search("metallica"); len(got) != 0 {
		t.Errorf("Expected no matches, got %d", len(got))
	}

	q, err := c.Get("q1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if q.Vocals != "queen/vocals.mp3" || q.Instrumental != "" {
		t.Errorf("Unexpected stems: %+v", q)
	}
	if len(q.Images) != 2 || q.Images[0] != "queen/images/a.PNG" {
		t.Errorf("Unexpected images: %v", q.Images)
	}
	if _, err := c.Folder("queen"); err != nil {
		t.Errorf("Folder lookup failed: %v", err)
	}
	if _, err := c.Get("missing"); !errors.Is(err, api.ErrTrackNotFound) {
		t.Errorf("Expected ErrTrackNotFound, got %v", err)
	}
}

func TestOpen_RejectsMissingRoot(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for missing catalog root")
	}
}
