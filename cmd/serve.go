package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/singalong/internal/catalog"
	"github.com/audiolibrelab/singalong/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the karaoke API server",
	Long: `Start a karaoke API server over a folder of tracks. Each track folder holds
track.yaml (title, artist, key and timed lyrics), vocals.wav|mp3 and
no_vocals.wav|mp3, plus optional images.

Use --seed to write a synthesized demo track into the data folder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srvCfg := cfg.Server
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			srvCfg.Port = port
		}
		if dir, _ := cmd.Flags().GetString("data"); dir != "" {
			srvCfg.DataDir = dir
		}
		if seed, _ := cmd.Flags().GetBool("seed"); seed {
			srvCfg.Seed = true
		}

		if err := os.MkdirAll(srvCfg.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		if srvCfg.Seed {
			dir, err := catalog.Seed(srvCfg.DataDir, cfg.Audio.SampleRate)
			if err != nil {
				return fmt.Errorf("failed to seed demo track: %w", err)
			}
			slog.Info("Demo track ready", "path", dir)
		}

		cat, err := catalog.Open(srvCfg.DataDir)
		if err != nil {
			return err
		}
		if cat.Len() == 0 {
			slog.Warn("No tracks found, run with --seed for a demo track", "data_dir", srvCfg.DataDir)
		}

		srv := server.New(srvCfg, cat)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return <-errCh
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port for the API server (overrides config)")
	serveCmd.Flags().String("data", "", "track folder (overrides config)")
	serveCmd.Flags().Bool("seed", false, "write the demo track before serving")
}
