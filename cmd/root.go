package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/audiolibrelab/singalong/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
)

// commands that run without a config
var noConfigCommands = map[string]bool{
	"keys":     true,
	"backends": true,
	"help":     true,
}

var rootCmd = &cobra.Command{
	Use:   "singalong",
	Short: "Karaoke player with vocal mix and key control",
	Long: `Singalong plays karaoke tracks from a server that provides separated
instrumental and vocal stems with timed lyrics.

The vocal stem can be mixed in from 0 to 100%, and the key can be shifted by
up to six semitones each way. 'singalong serve' runs a local karaoke server
over a folder of tracks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel, os.Stderr)

		if noConfigCommands[cmd.Name()] && cfgFile == "" {
			return nil
		}

		explicit := cfgFile != ""
		if !explicit {
			cfgFile = config.DefaultPath()
		}

		var err error
		cfg, err = loadConfig(cfgFile, profile, explicit)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// loadConfig reads the config file. A missing default file falls back to the
// built-in configuration.
func loadConfig(path, profile string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		if profile != "" {
			return nil, fmt.Errorf("profile '%s' requested but %s does not exist", profile, path)
		}
		slog.Debug("No config file, using defaults", "path", path)
		return config.Default(), nil
	}
	return config.LoadWithProfile(path, profile)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/singalong.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int, w io.Writer) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(w, opts)
	slog.SetDefault(slog.New(handler))
}
