package catalog

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/singalong/internal/api"
	"github.com/audiolibrelab/singalong/internal/audio"
)

// DemoID is the id of the seeded demo track
const DemoID = "demo-twinkle"

type demoWord struct {
	text  string
	notes []int // MIDI notes, one beat each
}

var demoLines = [][]demoWord{
	{{"Twinkle", []int{60, 60}}, {"twinkle", []int{67, 67}}, {"little", []int{69, 69}}, {"star", []int{67, 67}}},
	{{"How", []int{65}}, {"I", []int{65}}, {"wonder", []int{64, 64}}, {"what", []int{62}}, {"you", []int{62}}, {"are", []int{60, 60}}},
	{{"Up", []int{67}}, {"above", []int{67, 65}}, {"the", []int{65}}, {"world", []int{64}}, {"so", []int{64}}, {"high", []int{62, 62}}},
	{{"Like", []int{67}}, {"a", []int{67}}, {"diamond", []int{65, 65}}, {"in", []int{64}}, {"the", []int{64}}, {"sky", []int{62, 62}}},
}

const (
	demoBeat    = 0.5
	demoLead    = 1.0
	demoLineGap = 1.0
)

// Seed writes a synthesized demo track into root and returns its folder.
// Existing demo files are left alone.
func Seed(root string, sampleRate int) (string, error) {
	dir := filepath.Join(root, DemoID)
	if _, err := os.Stat(filepath.Join(dir, MetadataFile)); err == nil {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create demo folder: %w", err)
	}

	lines, notes, total := demoScore()
	meta := Metadata{
		ID:     DemoID,
		Title:  "Twinkle Twinkle Little Star",
		Artist: "Traditional",
		Key:    "C",
		Lyrics: lines,
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode demo metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write demo metadata: %w", err)
	}

	frames := int(total * float64(sampleRate))
	if err := writeStem(filepath.Join(dir, VocalsStem+".wav"), sampleRate, vocalFrames(sampleRate, frames, notes)); err != nil {
		return "", err
	}
	if err := writeStem(filepath.Join(dir, InstrumentalStem+".wav"), sampleRate, backingFrames(sampleRate, frames)); err != nil {
		return "", err
	}
	return dir, nil
}

type demoNote struct {
	start, end float64
	freq       float64
}

func demoScore() ([]api.KaraokeLine, []demoNote, float64) {
	var (
		lines []api.KaraokeLine
		notes []demoNote
	)
	t := demoLead
	for _, words := range demoLines {
		line := api.KaraokeLine{Start: t}
		var text []string
		for _, w := range words {
			start := t
			for _, n := range w.notes {
				notes = append(notes, demoNote{start: t, end: t + demoBeat*0.9, freq: midiFreq(n)})
				t += demoBeat
			}
			line.Words = append(line.Words, api.Word{Word: w.text, Start: start, End: t, Score: 1})
			text = append(text, w.text)
		}
		line.End = t
		line.Text = strings.Join(text, " ")
		lines = append(lines, line)
		t += demoLineGap
	}
	return lines, notes, t
}

func midiFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func vocalFrames(rate, n int, notes []demoNote) [][2]float64 {
	out := make([][2]float64, n)
	for _, note := range notes {
		from, to := int(note.start*float64(rate)), min(n, int(note.end*float64(rate)))
		for i := from; i < to; i++ {
			pos := float64(i-from) / float64(to-from)
			env := math.Min(1, pos*20) * (1 - pos)
			v := 0.3 * env * math.Sin(2*math.Pi*note.freq*float64(i)/float64(rate))
			out[i] = [2]float64{v, v}
		}
	}
	return out
}

func backingFrames(rate, n int) [][2]float64 {
	out := make([][2]float64, n)
	chord := []float64{midiFreq(48), midiFreq(55), midiFreq(64)}
	beatFrames := int(demoBeat * float64(rate))
	for i := range out {
		t := float64(i) / float64(rate)
		v := 0.0
		for _, f := range chord {
			v += 0.06 * math.Sin(2*math.Pi*f*t)
		}
		// soft click on every beat
		if beatFrames > 0 {
			if k := i % beatFrames; k < rate/100 {
				v += 0.1 * (1 - float64(k)/float64(rate/100))
			}
		}
		out[i] = [2]float64{v, v}
	}
	return out
}

func writeStem(path string, rate int, frames [][2]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if err := audio.WriteWAV(f, rate, frames); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
