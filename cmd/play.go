package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/singalong/internal/keymap"
	"github.com/audiolibrelab/singalong/internal/service"
	"github.com/audiolibrelab/singalong/internal/ui"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [track-id]",
	Short: "Play a karaoke track",
	Long: `Request a track from the karaoke server and play it with lyrics.

In a terminal the full player opens; audio starts on the first key press.
Without a terminal the track plays straight away and lyric lines are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := service.New(cfg)
		if err != nil {
			return err
		}
		track, err := svc.OpenTrack(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to open track: %w", err)
		}

		engine, err := svc.NewEngine()
		if err != nil {
			return fmt.Errorf("failed to create player: %w", err)
		}
		defer engine.Close()

		if cmd.Flags().Changed("mix") {
			mix, _ := cmd.Flags().GetInt("mix")
			engine.SetVocalMix(mix)
		}
		if name, _ := cmd.Flags().GetString("key"); name != "" {
			if _, ok := keymap.SemitonesForKey(name); !ok {
				return fmt.Errorf("unknown key %q, see 'singalong keys'", name)
			}
			engine.SetKey(name)
		} else if cmd.Flags().Changed("semitones") {
			s, _ := cmd.Flags().GetInt("semitones")
			engine.SetSemitones(keymap.ClampSemitones(s))
		}

		if err := engine.SetTrack(track); err != nil {
			return err
		}

		plain, _ := cmd.Flags().GetBool("plain")
		if plain || !ui.IsInteractive(os.Stdout) {
			return ui.PrintLyrics(ctx, engine, track, cmd.OutOrStdout(), cfg.FrameInterval())
		}

		// the full screen UI owns the terminal, so logs go to the log file
		logOut, closeLog, err := openLogFile(cfg.Player.LogFile)
		if err != nil {
			return err
		}
		defer closeLog()
		setupLogging(verboseLevel, logOut)

		if err := ui.Run(ctx, engine, track); err != nil {
			return fmt.Errorf("player failed: %w", err)
		}
		slog.Debug("Player closed", "track_id", track.ID)
		return nil
	},
}

func openLogFile(path string) (io.Writer, func(), error) {
	if path == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func init() {
	playCmd.Flags().Int("mix", 50, "vocal level in percent (overrides config)")
	playCmd.Flags().String("key", "", "play in this key, e.g. D or F#m")
	playCmd.Flags().Int("semitones", 0, "pitch offset in semitones (-6..6)")
	playCmd.Flags().Bool("plain", false, "print lyric lines instead of the full screen player")
}
