package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/clipbatch/internal/media"
	"github.com/maauso/clipbatch/internal/upload"
)

var probeCmd = &cobra.Command{
	Use:   "probe [video]",
	Short: "Print the container kind, size and duration of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, err := processorFrom(cmd.Context())
		if err != nil {
			return err
		}
		return runProbe(cmd.Context(), proc, args[0], cmd.OutOrStdout())
	},
}

// runProbe detects the kind of the file at path and reports its duration.
func runProbe(ctx context.Context, proc media.Processor, path string, out io.Writer) error {
	f, err := os.Open(path) // #nosec G304 - path is supplied by the operator
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	kind, body, err := upload.Inspect(declaredType(path), f)
	if err != nil {
		return err
	}

	duration, err := proc.Duration(ctx, body, kind)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "%s: %s, %s, %s\n",
		filepath.Base(path),
		kind,
		humanize.IBytes(uint64(info.Size())), // #nosec G115 - file sizes are non-negative
		formatTimestamp(duration),
	)
	return nil
}

// declaredType maps a file extension to a content type; unknown extensions
// fall back to content sniffing.
func declaredType(path string) string {
	if kind, ok := media.KindFromExtension(filepath.Ext(path)); ok {
		return kind.MIMEType()
	}
	return ""
}
