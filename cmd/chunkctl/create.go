package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/chunkkit/cluster"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <file>",
		Short: "Create an empty cluster file",
		Long: `The create command writes a new cluster file holding only the store
header, an empty roots table and an empty free registry. An existing file
is overwritten.

Example:
  chunkctl create data.chk`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args)
		},
	}
}

func runCreate(args []string) error {
	path := args[0]
	c, err := cluster.CreateFile(path, nil)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	id := c.ID()
	if err := c.Close(); err != nil {
		return err
	}
	if jsonOut {
		return printJSON(map[string]any{"file": path, "id": id.String()})
	}
	printInfo("Created %s (id %s)\n", path, id)
	return nil
}
