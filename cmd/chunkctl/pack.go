package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/chunkkit/cluster"
)

var packShrink bool

func init() {
	cmd := newPackCmd()
	cmd.Flags().BoolVar(&packShrink, "shrink", false, "Shrink growable chunks to their used size")
	rootCmd.AddCommand(cmd)
}

func newPackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pack <file>",
		Short: "Compact a cluster file in place",
		Long: `The pack command moves every chunk reachable from the named roots to
the front of the file, drops free and unreachable chunks and truncates
the file.

Example:
  chunkctl pack data.chk
  chunkctl pack data.chk --shrink`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(cmd.Context(), args)
		},
	}
}

func runPack(ctx context.Context, args []string) error {
	path := args[0]
	c, err := cluster.OpenFile(path, &cluster.Options{ShrinkOnPack: packShrink})
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer c.Close()

	rep, err := c.Pack()
	if rep != nil {
		// compacted, possibly with a failed walker; keep what was written
		if ferr := c.Flush(ctx); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	if err != nil {
		return fmt.Errorf("pack %s: %w", path, err)
	}

	if jsonOut {
		return printJSON(map[string]any{
			"file":      path,
			"live":      rep.Live,
			"moved":     rep.Moved,
			"shrunk":    rep.Shrunk,
			"before":    rep.SizeBefore,
			"after":     rep.SizeAfter,
			"reclaimed": rep.Reclaimed(),
		})
	}
	printInfo("Packed %s: %d live chunks, %d moved, %d shrunk\n", path, rep.Live, rep.Moved, rep.Shrunk)
	printInfo("  %s -> %s (%s reclaimed)\n",
		formatBytes(rep.SizeBefore), formatBytes(rep.SizeAfter), formatBytes(rep.Reclaimed()))
	return nil
}
