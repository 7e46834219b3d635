package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/cluster"
)

var (
	dumpRoot  string
	dumpLimit int
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().StringVar(&dumpRoot, "root", "", "Hex-dump the chain bound to this root instead of listing chunks")
	cmd.Flags().IntVar(&dumpLimit, "limit", 0, "Stop after this many chunks or bytes (0 = no limit)")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "List every chunk in physical order, or dump one chain",
		Long: `The dump command walks the data region of a cluster file and prints one
line per chunk: offset, span, used size and capacity, next pointer, tag and
whether the chunk is free. With --root it hex-dumps the bytes of a chain.

Example:
  chunkctl dump data.chk
  chunkctl dump data.chk --json
  chunkctl dump data.chk --root settings`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
}

type chunkRow struct {
	Offset   uint64 `json:"offset"`
	Span     uint64 `json:"span"`
	Size     uint64 `json:"size"`
	Capacity uint64 `json:"capacity"`
	Next     uint64 `json:"next,omitempty"`
	Tag      *uint8 `json:"tag,omitempty"`
	Fixed    bool   `json:"fixed,omitempty"`
	Free     bool   `json:"free,omitempty"`
}

func runDump(args []string) error {
	c, err := openReadOnly(args[0])
	if err != nil {
		return err
	}
	defer c.Close()

	if dumpRoot != "" {
		return dumpChain(c, dumpRoot)
	}

	rows, err := scanChunks(c)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(rows)
	}
	printInfo("%-12s %-10s %-21s %-12s %-4s %s\n", "OFFSET", "SPAN", "SIZE/CAPACITY", "NEXT", "TAG", "STATE")
	for _, r := range rows {
		tag := "-"
		if r.Tag != nil {
			tag = fmt.Sprint(*r.Tag)
		}
		state := "used"
		if r.Free {
			state = "free"
		}
		if r.Fixed {
			state += ",fixed"
		}
		printInfo("0x%-10X %-10d %-21s %-12s %-4s %s\n",
			r.Offset, r.Span, fmt.Sprintf("%d/%d", r.Size, r.Capacity), chunk.Pointer(r.Next), tag, state)
	}
	return nil
}

// scanChunks lists the chunks tiling the data region.
func scanChunks(c *cluster.Cluster) ([]chunkRow, error) {
	p := c.Provider()
	end := uint64(c.Store().Size())
	var rows []chunkRow
	for off := uint64(cluster.HeaderSize); off < end; {
		if dumpLimit > 0 && len(rows) >= dumpLimit {
			break
		}
		h, err := p.Load(chunk.Pointer(off))
		if err != nil {
			return rows, fmt.Errorf("scan stopped: %w", err)
		}
		r := chunkRow{
			Offset:   off,
			Span:     h.Span(),
			Size:     h.Size,
			Capacity: h.Capacity,
			Next:     uint64(h.Next),
			Fixed:    h.Fixed,
			Free:     c.Allocator().IsFree(chunk.Pointer(off)),
		}
		if h.HasTag {
			tag := h.Tag
			r.Tag = &tag
		}
		rows = append(rows, r)
		off += h.Span()
	}
	return rows, nil
}

func dumpChain(c *cluster.Cluster, name string) error {
	head, ok := c.Root(name)
	if !ok {
		return fmt.Errorf("%w: %q", cluster.ErrNoRoot, name)
	}
	cur, err := c.OpenChain(head)
	if err != nil {
		return err
	}
	defer cur.Close()

	var r io.Reader = cur
	if dumpLimit > 0 {
		r = io.LimitReader(cur, int64(dumpLimit))
	}
	printVerbose("Chain %q at %s: %d bytes in %d chunks\n", name, head, cur.Size(), cur.Chunks())
	d := hex.Dumper(os.Stdout)
	if _, err := io.Copy(d, r); err != nil {
		return err
	}
	return d.Close()
}
