package cmd

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/singalong/internal/keymap"
	"github.com/audiolibrelab/singalong/internal/lyrics"
	"github.com/audiolibrelab/singalong/internal/service"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [track-id]",
	Short: "Show track details and the resolved player configuration",
	Long:  `Display the track metadata, stem URLs and lyric summary for a track, followed by the player settings with their origin (default, file, inherited, profile-specific or environment).`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service.New(cfg)
		if err != nil {
			return err
		}
		t, err := svc.OpenTrack(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("=== TRACK ===\n")
		fmt.Printf("id: %s\n", t.ID)
		fmt.Printf("title: %s\n", t.Title)
		fmt.Printf("artist: %s\n", t.Artist)
		semitones, known := keymap.SemitonesForKey(t.Key)
		if known {
			fmt.Printf("key: %s (offset %+d)\n", t.Key, semitones)
		} else {
			fmt.Printf("key: %s (unknown)\n", t.Key)
		}
		fmt.Printf("instrumental: %s\n", orNone(t.Stems.Instrumental))
		fmt.Printf("vocals: %s\n", orNone(t.Stems.Vocals))
		fmt.Printf("lyrics: %d lines, %.1fs\n", len(t.Lyrics), lyrics.TotalDuration(t.Lyrics))
		if images, err := svc.Images(cmd.Context(), t); err == nil && len(images) > 0 {
			fmt.Printf("images: %d\n", len(images))
		}

		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")
		if cfg.Profile != "" {
			fmt.Printf("profile: %s\n", cfg.Profile)
		}
		fmt.Printf("\n[API]\n")
		fmt.Printf("base_url: %s %s\n", cfg.API.BaseURL, getInheritanceIndicator(cfg.Inheritance["api.base_url"]))
		fmt.Printf("timeout_seconds: %d %s\n", cfg.API.TimeoutSeconds, getInheritanceIndicator(cfg.Inheritance["api.timeout_seconds"]))

		fmt.Printf("\n[Audio]\n")
		fmt.Printf("backend: %s %s\n", cfg.Audio.Backend, getInheritanceIndicator(cfg.Inheritance["audio.backend"]))
		fmt.Printf("sample_rate: %d %s\n", cfg.Audio.SampleRate, getInheritanceIndicator(cfg.Inheritance["audio.sample_rate"]))
		fmt.Printf("buffer_ms: %d %s\n", cfg.Audio.BufferMs, getInheritanceIndicator(cfg.Inheritance["audio.buffer_ms"]))

		fmt.Printf("\n[Player]\n")
		fmt.Printf("default_mix: %d%% %s\n", cfg.VocalMix(), getInheritanceIndicator(cfg.Inheritance["player.default_mix"]))
		fmt.Printf("pitch_module_url: %s %s\n", orNone(cfg.PitchModuleURL()), getInheritanceIndicator(cfg.Inheritance["player.pitch_module_url"]))
		return nil
	},
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	if status == "" {
		return "[unknown]"
	}
	return "[" + status + "]"
}
