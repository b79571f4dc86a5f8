package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/audiolibrelab/singalong/internal/api"
	"github.com/audiolibrelab/singalong/internal/audio"
	"github.com/audiolibrelab/singalong/internal/config"
	"github.com/audiolibrelab/singalong/internal/player"
)

// Service is the entry point the CLI and terminal UI drive
type Service interface {
	// Catalog operations
	Search(ctx context.Context, query string) ([]api.SearchResult, error)
	OpenTrack(ctx context.Context, trackID string) (api.Track, error)
	Images(ctx context.Context, t api.Track) ([]string, error)

	// Playback operations
	NewEngine() (*player.Engine, error)

	// Download operations
	Download(ctx context.Context, t api.Track, dir string, progress ProgressFunc) ([]DownloadedFile, error)

	GetLastError() string
}

// ProgressFunc wraps a download stream so callers can report progress.
// size is -1 when unknown.
type ProgressFunc func(name string, size int64, r io.Reader) io.Reader

// DownloadedFile is one stem written by Download
type DownloadedFile struct {
	Stem      string `json:"stem"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
}

// KaraokeService is the main service implementation
type KaraokeService struct {
	cfg    *config.Config
	client *api.Client

	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a service talking to the configured karaoke API
func New(cfg *config.Config) (*KaraokeService, error) {
	client, err := api.NewClient(cfg.API.BaseURL, cfg.Timeout())
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return &KaraokeService{
		cfg:    cfg,
		client: client,
	}, nil
}

// Search queries the catalog
func (s *KaraokeService) Search(ctx context.Context, query string) ([]api.SearchResult, error) {
	slog.Debug("Service.Search called", "query", query)
	results, err := s.client.Search(ctx, query)
	if err != nil {
		s.setLastError(fmt.Sprintf("Search failed: %v", err))
		return nil, err
	}
	s.clearLastError()
	return results, nil
}

// OpenTrack asks the API to process a track and returns it with absolute
// stem URLs
func (s *KaraokeService) OpenTrack(ctx context.Context, trackID string) (api.Track, error) {
	slog.Debug("Service.OpenTrack called", "track_id", trackID)
	t, err := s.client.ProcessTrack(ctx, trackID)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to open track: %v", err))
		return api.Track{}, err
	}
	s.clearLastError()
	return t, nil
}

// Images lists the image URLs of a track
func (s *KaraokeService) Images(ctx context.Context, t api.Track) ([]string, error) {
	if t.ImagesURL == "" {
		return nil, nil
	}
	folder := t.ID
	if u, err := url.Parse(t.ImagesURL); err == nil && u.Query().Get("track_folder") != "" {
		folder = u.Query().Get("track_folder")
	}
	return s.client.Images(ctx, folder)
}

// NewEngine creates a playback engine wired to the configured audio backend.
// The engine still needs Activate before it produces sound.
func (s *KaraokeService) NewEngine() (*player.Engine, error) {
	opts, err := s.cfg.AudioOptions()
	if err != nil {
		return nil, err
	}
	opts.Fetch = s.client.Fetch

	moduleURL := s.cfg.PitchModuleURL()
	if moduleURL != "" {
		if moduleURL, err = s.client.Resolve(moduleURL); err != nil {
			return nil, fmt.Errorf("invalid pitch module URL: %w", err)
		}
	}

	return player.New(player.Options{
		Factory:        audio.NewFactory(opts),
		Fetcher:        s.client,
		Frames:         player.NewTimerScheduler(s.cfg.FrameInterval()),
		PitchModuleURL: moduleURL,
		DefaultMix:     s.cfg.VocalMix(),
	}), nil
}

// Download writes the stems of a track into dir
func (s *KaraokeService) Download(ctx context.Context, t api.Track, dir string, progress ProgressFunc) ([]DownloadedFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	stems := []struct{ name, url string }{
		{"instrumental", t.Stems.Instrumental},
		{"vocals", t.Stems.Vocals},
	}
	base := cleanFileName(t.Title)
	if base == "" {
		base = cleanFileName(t.ID)
	}

	var files []DownloadedFile
	for _, stem := range stems {
		if stem.url == "" {
			slog.Warn("Track has no stem", "track_id", t.ID, "stem", stem.name)
			continue
		}
		f, err := s.downloadStem(ctx, stem.url, filepath.Join(dir, base+"_"+stem.name+stemExtension(stem.url)), stem.name, progress)
		if err != nil {
			s.setLastError(fmt.Sprintf("Download failed: %v", err))
			return files, err
		}
		files = append(files, f)
	}
	s.clearLastError()
	return files, nil
}

func (s *KaraokeService) downloadStem(ctx context.Context, stemURL, dest, name string, progress ProgressFunc) (DownloadedFile, error) {
	body, size, err := s.client.Open(ctx, stemURL)
	if err != nil {
		return DownloadedFile{}, fmt.Errorf("failed to fetch %s stem: %w", name, err)
	}
	defer body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return DownloadedFile{}, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	var r io.Reader = body
	if progress != nil {
		r = progress(name, size, body)
	}
	n, err := io.Copy(out, r)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return DownloadedFile{}, fmt.Errorf("failed to write %s stem: %w", name, err)
	}

	slog.Debug("Stem downloaded", "stem", name, "path", dest, "bytes", n)
	return DownloadedFile{Stem: name, Path: dest, Size: n, SizeHuman: formatBytes(n)}, nil
}

// GetLastError returns the last error message, if any
func (s *KaraokeService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *KaraokeService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err
	slog.Debug("Service error recorded", "error", err)
}

func (s *KaraokeService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// Helper functions

func cleanFileName(name string) string {
	// Allows: letters, numbers, spaces, hyphens, underscores
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}

func stemExtension(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	switch ext := strings.ToLower(path.Ext(ref)); ext {
	case ".wav", ".mp3":
		return ext
	}
	return ".audio"
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

var _ Service = (*KaraokeService)(nil)
