package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/singalong/internal/audio"

	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List available audio output backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "🔊 Audio Backends (%s)\n", runtime.GOOS)
		fmt.Fprintf(out, "═══════════════════════════════════════\n\n")

		current := ""
		if cfg != nil {
			current = cfg.Audio.Backend
		}
		for i, b := range audio.GetAvailableBackends() {
			marker := ""
			if string(b) == current {
				marker = "  (configured)"
			}
			fmt.Fprintf(out, "  %d. %s%s\n", i+1, b, marker)
		}

		fmt.Fprintf(out, "\n💡 Usage:\n")
		fmt.Fprintf(out, "  • oto: system audio output\n")
		fmt.Fprintf(out, "  • headless: renders in real time without a device\n")
		fmt.Fprintf(out, "  • auto: oto, falling back to headless when no device opens\n")
		fmt.Fprintf(out, "  • Configure in audio.backend or SINGALONG_AUDIO_BACKEND\n")
		return nil
	},
}
