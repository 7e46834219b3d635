package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newValidateCmd())
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check chunk tiling, reachability and the free registry",
		Long: `The validate command scans a cluster file physically and from its named
roots. It reports chunks that are neither reachable nor free, chunks that
are both, pointers that miss a chunk boundary and broken headers.

Example:
  chunkctl validate data.chk
  chunkctl validate data.chk --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args)
		},
	}
}

var errInvalid = errors.New("validation failed")

type validateResult struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Chunks int      `json:"chunks"`
	Live   int      `json:"live"`
	Free   int      `json:"free"`
	Issues []string `json:"issues,omitempty"`
}

func runValidate(args []string) error {
	path := args[0]
	printVerbose("Validating cluster: %s\n", path)

	c, err := openReadOnly(path)
	if err != nil {
		return err
	}
	defer c.Close()

	rep, err := c.Validate()
	if err != nil {
		return err
	}
	res := validateResult{File: path, Valid: rep.OK(), Chunks: rep.Chunks, Live: rep.Live, Free: rep.Free}
	for _, issue := range rep.Issues {
		res.Issues = append(res.Issues, issue.Error())
	}

	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		printInfo("\nValidating %s...\n\n", path)
		printInfo("  Chunks: %d (%d live, %d free)\n", res.Chunks, res.Live, res.Free)
		if res.Valid {
			printInfo("  ✓ No issues found\n")
		}
		for _, issue := range res.Issues {
			printInfo("  ✗ %s\n", issue)
		}
	}
	if !res.Valid {
		return errInvalid
	}
	return nil
}
