// Package api holds the karaoke track contract shared by the mock server
// and the player, plus an HTTP client for it.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	ErrProcessingFailed = errors.New("track processing failed")
	ErrTrackNotFound    = errors.New("track not found")
)

// Word is one timed word of a lyric line
type Word struct {
	Word  string  `json:"word" yaml:"word"`
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Score float64 `json:"score" yaml:"score"`
}

// KaraokeLine is a timed lyric line
type KaraokeLine struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Text  string  `json:"text" yaml:"text"`
	Words []Word  `json:"words" yaml:"words"`
}

// SearchResult is one entry of a search response
type SearchResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"coverUrl,omitempty"`
}

type TrackInfo struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"coverUrl,omitempty"`
}

type Analysis struct {
	Key string `json:"key"`
}

type Downloads struct {
	VocalsURL       string `json:"vocals_url"`
	InstrumentalURL string `json:"instrumental_url"`
	ImagesURL       string `json:"images_url,omitempty"`
	TextURL         string `json:"text_url,omitempty"`
	ImagesCount     Count  `json:"images_count"`
}

// Count decodes from either a JSON number or a numeric string
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Count(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("count must be a number or numeric string: %w", err)
	}
	if s == "" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", s, err)
	}
	*c = Count(n)
	return nil
}

// ProcessTrackResponse is the result of requesting a track for playback
type ProcessTrackResponse struct {
	Status      string        `json:"status"`
	Message     string        `json:"message,omitempty"`
	TrackInfo   *TrackInfo    `json:"track_info,omitempty"`
	Analysis    *Analysis     `json:"analysis,omitempty"`
	Downloads   *Downloads    `json:"downloads,omitempty"`
	KaraokeData []KaraokeLine `json:"karaokeData,omitempty"`
}

type ImagesResponse struct {
	Status string   `json:"status"`
	Images []string `json:"images"`
}

type ProcessTrackRequest struct {
	TrackID string `json:"track_id"`
}

// StemURLs locates the two separated stems of a track. Either may be empty.
type StemURLs struct {
	Instrumental string `json:"instrumental" yaml:"instrumental"`
	Vocals       string `json:"vocals" yaml:"vocals"`
}

// Track is everything the player needs to play one song
type Track struct {
	ID        string        `json:"id" yaml:"id"`
	Title     string        `json:"title" yaml:"title"`
	Artist    string        `json:"artist" yaml:"artist"`
	Key       string        `json:"key" yaml:"key"`
	CoverURL  string        `json:"coverUrl,omitempty" yaml:"cover_url,omitempty"`
	ImagesURL string        `json:"imagesUrl,omitempty" yaml:"images_url,omitempty"`
	Stems     StemURLs      `json:"stems" yaml:"stems"`
	Lyrics    []KaraokeLine `json:"lyrics" yaml:"lyrics"`
}

// Track converts a successful response into a playable track
func (r *ProcessTrackResponse) Track(id string) (Track, error) {
	if r.Status != StatusSuccess {
		if r.Message != "" {
			return Track{}, fmt.Errorf("%w: %s", ErrProcessingFailed, r.Message)
		}
		return Track{}, fmt.Errorf("%w: status %q", ErrProcessingFailed, r.Status)
	}

	t := Track{ID: id, Lyrics: r.KaraokeData}
	if r.TrackInfo != nil {
		if r.TrackInfo.ID != "" {
			t.ID = r.TrackInfo.ID
		}
		t.Title = r.TrackInfo.Title
		t.Artist = r.TrackInfo.Artist
		t.CoverURL = r.TrackInfo.CoverURL
	}
	if r.Analysis != nil {
		t.Key = r.Analysis.Key
	}
	if r.Downloads != nil {
		t.Stems = StemURLs{
			Instrumental: r.Downloads.InstrumentalURL,
			Vocals:       r.Downloads.VocalsURL,
		}
		t.ImagesURL = r.Downloads.ImagesURL
	}
	return t, nil
}

// NewProcessTrackResponse builds the success response for a track
func NewProcessTrackResponse(t Track, imagesCount int) ProcessTrackResponse {
	return ProcessTrackResponse{
		Status: StatusSuccess,
		TrackInfo: &TrackInfo{
			ID:       t.ID,
			Title:    t.Title,
			Artist:   t.Artist,
			CoverURL: t.CoverURL,
		},
		Analysis: &Analysis{Key: t.Key},
		Downloads: &Downloads{
			VocalsURL:       t.Stems.Vocals,
			InstrumentalURL: t.Stems.Instrumental,
			ImagesURL:       t.ImagesURL,
			ImagesCount:     Count(imagesCount),
		},
		KaraokeData: t.Lyrics,
	}
}
