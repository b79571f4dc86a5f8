package cmd

import (
	"fmt"

	"github.com/audiolibrelab/singalong/internal/keymap"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List selectable keys and their pitch offsets",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "🎵 Keys (offset in semitones, pitch factor)\n")
		fmt.Fprintf(out, "═══════════════════════════════════════\n")
		for _, k := range keymap.Keys {
			s, _ := keymap.SemitonesForKey(k)
			clamped := keymap.ClampSemitones(s)
			note := ""
			if clamped != s {
				note = fmt.Sprintf("  (clamped to %+d)", clamped)
			}
			fmt.Fprintf(out, "  %-4s %+3d  x%.3f%s\n", k, s, keymap.PitchFactor(float64(clamped)), note)
		}
		return nil
	},
}
