package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/cluster"
)

var putFixed bool

func init() {
	put := newPutCmd()
	put.Flags().BoolVar(&putFixed, "fixed", false, "Store the data in a single fixed chunk")
	rootCmd.AddCommand(put, newGetCmd(), newRemoveCmd())
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <file> <root> [input]",
		Short: "Store data as a chain under a named root",
		Long: `The put command writes the contents of input (or stdin) to a new chain
and binds it to root. A chain previously bound to root is freed.

Example:
  chunkctl put data.chk settings settings.json
  echo hello | chunkctl put data.chk greeting`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(args)
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <file> <root>",
		Short: "Write the chain bound to a root to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(args)
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file> <root>",
		Short: "Unbind a root and free its chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(args)
		},
	}
}

func runPut(args []string) (err error) {
	path, name := args[0], args[1]
	var in io.Reader = os.Stdin
	if len(args) == 3 {
		f, err := os.Open(args[2])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	c, err := cluster.OpenFile(path, nil)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { err = errors.Join(err, c.Close()) }()

	req := chunk.Req(uint64(len(data)))
	if putFixed {
		req = req.Fixed()
	}
	cur, err := c.NewChain(req)
	if err != nil {
		return err
	}
	if _, err := cur.Write(data); err != nil {
		return errors.Join(err, cur.Close())
	}
	if err := cur.Close(); err != nil {
		return err
	}

	old, had := c.Root(name)
	if err := c.SetRoot(name, cur.Head()); err != nil {
		return err
	}
	if had && !shared(c, old) {
		if err := c.Free(old); err != nil {
			return err
		}
	}
	printVerbose("Stored %d bytes under %q at %s\n", len(data), name, cur.Head())
	return nil
}

func runGet(args []string) error {
	c, err := openReadOnly(args[0])
	if err != nil {
		return err
	}
	defer c.Close()

	head, ok := c.Root(args[1])
	if !ok {
		return fmt.Errorf("%w: %q", cluster.ErrNoRoot, args[1])
	}
	cur, err := c.OpenChain(head)
	if err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, cur)
	return errors.Join(err, cur.Close())
}

func runRemove(args []string) (err error) {
	path, name := args[0], args[1]
	c, err := cluster.OpenFile(path, nil)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { err = errors.Join(err, c.Close()) }()

	head, ok := c.Root(name)
	if !ok {
		return fmt.Errorf("%w: %q", cluster.ErrNoRoot, name)
	}
	if err := c.DeleteRoot(name); err != nil {
		return err
	}
	if shared(c, head) {
		return nil
	}
	return c.Free(head)
}

// shared reports whether another root still points at head.
func shared(c *cluster.Cluster, head chunk.Pointer) bool {
	for _, n := range c.Roots() {
		if p, _ := c.Root(n); p == head {
			return true
		}
	}
	return false
}
