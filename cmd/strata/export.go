package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var flagOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the model as a compressed snapshot",
	Long:  "Writes every entity and edge as zstd-compressed JSON lines, to --output or stdout.",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	var w io.Writer = os.Stdout
	if flagOutput != "" {
		f, err := os.Create(flagOutput)
		if err != nil {
			return fmt.Errorf("creating %s: %w", flagOutput, err)
		}
		defer f.Close()
		w = f
	}
	if err := e.Export(w); err != nil {
		return err
	}
	if flagOutput != "" {
		fmt.Fprintf(os.Stderr, "Exported %d entities to %s\n", e.Store().Len(), flagOutput)
	}
	return nil
}
