package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestWAV(t *testing.T, rate int, frames [][2]float64) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stem.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create WAV: %v", err)
	}
	if err := WriteWAV(f, rate, frames); err != nil {
		f.Close()
		t.Fatalf("WriteWAV failed: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read WAV: %v", err)
	}
	return data
}

func TestDecode_WAVRoundTrip(t *testing.T) {
	data := writeTestWAV(t, 8000, constantFrames(8000, 0.5))

	buf, err := Decode(data, 8000, DefaultResampleQuality)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.SampleRate() != 8000 {
		t.Errorf("Expected 8000 Hz, got %d", buf.SampleRate())
	}
	if buf.Frames() != 8000 {
		t.Errorf("Expected 8000 frames, got %d", buf.Frames())
	}
	if !approx(buf.Duration(), 1) {
		t.Errorf("Expected 1s duration, got %v", buf.Duration())
	}

	frame := make([][2]float64, 1)
	buf.Streamer().Stream(frame)
	if !approx(frame[0][0], 0.5) {
		t.Errorf("Expected sample 0.5, got %v", frame[0][0])
	}
}

func TestDecode_ResamplesToContextRate(t *testing.T) {
	data := writeTestWAV(t, 8000, constantFrames(8000, 0.25))

	buf, err := Decode(data, 16000, DefaultResampleQuality)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.SampleRate() != 16000 {
		t.Errorf("Expected 16000 Hz, got %d", buf.SampleRate())
	}
	if buf.Duration() < 0.95 || buf.Duration() > 1.05 {
		t.Errorf("Expected about 1s after resampling, got %v", buf.Duration())
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("<html>not audio</html>"), []byte("RIFF")} {
		if _, err := Decode(data, 44100, DefaultResampleQuality); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Expected ErrUnsupportedFormat for %q, got %v", data, err)
		}
	}
}

func TestSniffing(t *testing.T) {
	if !isMP3([]byte("ID3\x04\x00")) {
		t.Error("Expected ID3 header to sniff as MP3")
	}
	if !isMP3([]byte{0xFF, 0xFB, 0x90}) {
		t.Error("Expected frame sync to sniff as MP3")
	}
	if isWAV([]byte("RIFF\x00\x00\x00\x00AVI ")) {
		t.Error("Expected RIFF/AVI not to sniff as WAV")
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    BackendType
		wantErr bool
	}{
		{"", BackendTypeAuto, false},
		{"oto", BackendTypeOto, false},
		{"HEADLESS", BackendTypeHeadless, false},
		{"auto", BackendTypeAuto, false},
		{"pipewire", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBackend(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
