package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/clipbatch/internal/editor"
	"github.com/maauso/clipbatch/internal/media"
	"github.com/maauso/clipbatch/internal/upload"
)

var (
	trimStart     string
	trimEnd       string
	trimOutDir    string
	trimThumbnail bool
)

var trimCmd = &cobra.Command{
	Use:   "trim [video]",
	Short: "Cut the [start, end) segment of a video into a clip",
	Long: `Cut a segment of an MP4 or MOV video without re-encoding.

Timestamps accept seconds (12.5), MM:SS or HH:MM:SS[.mmm]. When --end is
omitted the clip runs to the end of the video. The clip is written to the
output directory as <name>_clip1<ext>.

Example:
  clipbatch trim talk.mp4 --start 00:01:05 --end 00:02:30 --out ./clips`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, err := processorFrom(cmd.Context())
		if err != nil {
			return err
		}
		opts := TrimOptions{
			Source:    args[0],
			Start:     trimStart,
			End:       trimEnd,
			OutDir:    trimOutDir,
			Thumbnail: trimThumbnail,
		}
		_, err = runTrim(cmd.Context(), proc, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return err
	},
}

func init() {
	trimCmd.Flags().StringVar(&trimStart, "start", "0", "start timestamp")
	trimCmd.Flags().StringVar(&trimEnd, "end", "", "end timestamp (default: end of video)")
	trimCmd.Flags().StringVarP(&trimOutDir, "out", "o", ".", "output directory")
	trimCmd.Flags().BoolVar(&trimThumbnail, "thumbnail", false, "also write the first frame as <clip>.jpg")
}

// TrimOptions holds the parameters of a single trim run.
type TrimOptions struct {
	Source    string
	Start     string
	End       string
	OutDir    string
	Thumbnail bool
}

// runTrim loads the source into an editing session, selects the range and
// exports it. It returns the path of the written clip.
func runTrim(ctx context.Context, proc media.Processor, opts TrimOptions, out, progressOut io.Writer) (string, error) {
	start, err := parseTimestamp(opts.Start)
	if err != nil {
		return "", fmt.Errorf("invalid --start: %w", err)
	}

	kind, err := detectKind(opts.Source)
	if err != nil {
		return "", err
	}
	blob, err := editor.NewFileBlob(opts.Source)
	if err != nil {
		return "", err
	}

	store := editor.NewStore(proc, editor.WithRangeLock(false))
	src := &editor.Source{Name: filepath.Base(opts.Source), Kind: kind, Data: blob}
	if err := store.SetSource(ctx, src); err != nil {
		return "", err
	}

	end := store.Snapshot().Duration
	if opts.End != "" {
		if end, err = parseTimestamp(opts.End); err != nil {
			return "", fmt.Errorf("invalid --end: %w", err)
		}
	}
	if err := store.SetRange(start, end); err != nil {
		return "", err
	}

	st := store.Snapshot()
	_, _ = fmt.Fprintf(out, "Trimming %s from %s to %s...\n",
		src.Name, formatTimestamp(st.RangeStart), formatTimestamp(st.RangeEnd))

	var reported int
	clip, err := store.ExportRange(ctx, func(p float64) {
		if pct := int(p * 100); pct >= reported+10 || (pct == 100 && reported < 100) {
			reported = pct
			_, _ = fmt.Fprintf(progressOut, "  %3d%%\n", pct)
		}
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(opts.OutDir, 0750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(opts.OutDir, clip.FileName())
	if err := os.WriteFile(path, clip.Data, 0600); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	if opts.Thumbnail && clip.Thumbnail != nil {
		thumbPath := filepath.Join(opts.OutDir, clip.Name+".jpg")
		if err := os.WriteFile(thumbPath, clip.Thumbnail, 0600); err != nil {
			return "", fmt.Errorf("write thumbnail: %w", err)
		}
	}

	_, _ = fmt.Fprintf(out, "Created %s (%s, %s)\n",
		path,
		humanize.IBytes(uint64(len(clip.Data))),
		formatTimestamp(clip.Duration()),
	)
	return path, nil
}

// detectKind sniffs the first bytes of the file at path.
func detectKind(path string) (media.Kind, error) {
	f, err := os.Open(path) // #nosec G304 - path is supplied by the operator
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }()

	kind, _, err := upload.Inspect(declaredType(path), f)
	return kind, err
}
