package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/audiolibrelab/singalong/internal/api"
	"github.com/audiolibrelab/singalong/internal/service"

	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download [track-id]",
	Short: "Download the stems of a track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("out")

		svc, err := service.New(cfg)
		if err != nil {
			return err
		}
		t, err := svc.OpenTrack(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		files, err := downloadWithProgress(cmd.Context(), svc, t, dir, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Downloaded %s - %s\n", t.Artist, t.Title)
		for _, f := range files {
			fmt.Fprintf(out, "  %s: %s (%s)\n", f.Stem, f.Path, f.SizeHuman)
		}
		return nil
	},
}

type stemDownloader interface {
	Download(ctx context.Context, t api.Track, dir string, progress service.ProgressFunc) ([]service.DownloadedFile, error)
}

// downloadWithProgress draws one bar per stem. Bars left unfinished by a
// failed download are aborted so the progress container can shut down.
func downloadWithProgress(ctx context.Context, svc stemDownloader, t api.Track, dir string, w io.Writer) ([]service.DownloadedFile, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := mpb.NewWithContext(ctx, mpb.WithWidth(48), mpb.WithOutput(w))
	var bars []*mpb.Bar
	progress := func(name string, size int64, r io.Reader) io.Reader {
		// unknown sizes grow the total as bytes arrive
		total := max(size, 0)
		bar := p.AddBar(total,
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("%-13s", name)),
				decor.CountersKibiByte("% .1f / % .1f"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 30),
			),
		)
		if size <= 0 {
			bar.SetTotal(-1, false)
		}
		bars = append(bars, bar)
		return &barReader{r: bar.ProxyReader(r), bar: bar, unknown: size <= 0}
	}

	files, err := svc.Download(ctx, t, dir, progress)
	if err != nil {
		for _, bar := range bars {
			if !bar.Completed() {
				bar.Abort(false)
			}
		}
		cancel()
	}
	p.Wait()
	return files, err
}

// barReader completes bars whose size was not known up front
type barReader struct {
	r       io.ReadCloser
	bar     *mpb.Bar
	unknown bool
}

func (b *barReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF && b.unknown {
		b.bar.SetTotal(-1, true)
	}
	if err != nil && err != io.EOF {
		b.bar.Abort(false)
	}
	return n, err
}

func init() {
	downloadCmd.Flags().StringP("out", "o", ".", "directory to write the stems into")
}
