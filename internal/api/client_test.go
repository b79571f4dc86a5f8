package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestAPI(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "queen" {
			json.NewEncoder(w).Encode([]SearchResult{})
			return
		}
		json.NewEncoder(w).Encode([]SearchResult{{ID: "t1", Title: "Bohemian Rhapsody", Artist: "Queen"}})
	})
	mux.HandleFunc("/api/process-track", func(w http.ResponseWriter, r *http.Request) {
		var req ProcessTrackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID != "t1" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(ProcessTrackResponse{Status: StatusError, Message: "Track not found"})
			return
		}
		// images_count arrives as a string from the original backend
		w.Write([]byte(`{"status":"success",
			"track_info":{"title":"Bohemian Rhapsody","artist":"Queen"},
			"analysis":{"key":"Bb"},
			"downloads":{"vocals_url":"/data/t1/vocals.wav","instrumental_url":"/data/t1/no_vocals.wav","images_count":"3","images_url":"/api/images?track_folder=t1"},
			"karaokeData":[{"start":1,"end":3,"text":"Is this","words":[{"word":"Is","start":1,"end":2,"score":0.9}]}]}`))
	})
	mux.HandleFunc("/api/images", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ImagesResponse{Status: StatusSuccess, Images: []string{"/data/t1/images/1.jpg"}})
	})
	mux.HandleFunc("/data/t1/vocals.wav", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("RIFF"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c, srv
}

func TestClient_Search(t *testing.T) {
	c, _ := newTestAPI(t)
	results, err := c.Search(context.Background(), "queen")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "t1" {
		t.Errorf("Unexpected results: %+v", results)
	}
}

func TestClient_ProcessTrack(t *testing.T) {
	c, srv := newTestAPI(t)
	track, err := c.ProcessTrack(context.Background(), "t1")
	if err != nil {
		t.Fatalf("ProcessTrack failed: %v", err)
	}
	if track.ID != "t1" || track.Title != "Bohemian Rhapsody" || track.Key != "Bb" {
		t.Errorf("Unexpected track: %+v", track)
	}
	if track.Stems.Vocals != srv.URL+"/data/t1/vocals.wav" {
		t.Errorf("Expected absolute vocals URL, got %s", track.Stems.Vocals)
	}
	if len(track.Lyrics) != 1 || track.Lyrics[0].Words[0].Word != "Is" {
		t.Errorf("Unexpected lyrics: %+v", track.Lyrics)
	}
}

func TestClient_ProcessTrackNotFound(t *testing.T) {
	c, _ := newTestAPI(t)
	if _, err := c.ProcessTrack(context.Background(), "nope"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Expected ErrTrackNotFound, got %v", err)
	}
}

func TestClient_ImagesAndFetch(t *testing.T) {
	c, _ := newTestAPI(t)
	images, err := c.Images(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Images failed: %v", err)
	}
	if len(images) != 1 {
		t.Errorf("Expected 1 image, got %d", len(images))
	}

	data, err := c.Fetch(context.Background(), "/data/t1/vocals.wav")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "RIFF" {
		t.Errorf("Unexpected body %q", data)
	}
	if _, err := c.Fetch(context.Background(), "/data/t1/missing.wav"); err == nil {
		t.Error("Expected error fetching a missing asset")
	}
}

func TestNewClient_RejectsRelativeBase(t *testing.T) {
	if _, err := NewClient("/api", time.Second); err == nil {
		t.Error("Expected error for relative base URL")
	}
}

func TestResponseTrack_FailedStatus(t *testing.T) {
	r := ProcessTrackResponse{Status: StatusError, Message: "separation crashed"}
	if _, err := r.Track("t1"); !errors.Is(err, ErrProcessingFailed) {
		t.Errorf("Expected ErrProcessingFailed, got %v", err)
	}
}

func TestCount_Unmarshal(t *testing.T) {
	for input, want := range map[string]Count{`3`: 3, `"7"`: 7, `""`: 0} {
		var c Count
		if err := json.Unmarshal([]byte(input), &c); err != nil {
			t.Errorf("Unmarshal(%s) failed: %v", input, err)
			continue
		}
		if c != want {
			t.Errorf("Unmarshal(%s) = %d, want %d", input, c, want)
		}
	}
	var c Count
	if err := json.Unmarshal([]byte(`"many"`), &c); err == nil {
		t.Error("Expected error for non-numeric count")
	}
}
