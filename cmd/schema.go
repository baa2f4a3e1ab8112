package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/popgrid/internal/table"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Check feature tables against schema descriptors",
}

// -- schema check --

var schemaCheckCmd = &cobra.Command{
	Use:   "check <table.csv>",
	Short: "Validate an exported table against a schema descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expected, _ := cmd.Flags().GetString("expected")
		if expected == "" {
			expected = cfg.Output.Expected
		}
		if expected == "" {
			return eris.New("schema check: --expected is required")
		}
		return checkTable(os.Stdout, expected, args[0], cfg.Output.NoData)
	},
}

// -- schema diff --

var schemaDiffCmd = &cobra.Command{
	Use:   "diff <a.yaml> <b.yaml>",
	Short: "Compare two schema descriptors",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return diffSchemas(os.Stdout, args[0], args[1])
	},
}

func init() {
	schemaCheckCmd.Flags().String("expected", "", "schema descriptor (default: output.expected)")

	schemaCmd.AddCommand(schemaCheckCmd)
	schemaCmd.AddCommand(schemaDiffCmd)
	rootCmd.AddCommand(schemaCmd)
}

// checkTable reads a CSV table and validates it against the descriptor at
// expectedPath. Mismatch details are printed to w.
func checkTable(w io.Writer, expectedPath, tablePath, nodata string) error {
	expected, err := table.ReadSchema(expectedPath)
	if err != nil {
		return err
	}
	if expected.NoData != "" {
		nodata = expected.NoData
	}

	f, err := os.Open(tablePath)
	if err != nil {
		return eris.Wrapf(err, "schema check: open %s", tablePath)
	}
	defer f.Close() //nolint:errcheck

	t, err := table.ReadCSV(f, nodata)
	if err != nil {
		return err
	}
	if err := table.Validate(t, expected); err != nil {
		printMismatch(w, err)
		return err
	}
	_, _ = fmt.Fprintf(w, "%s: %d records, %d columns, schema OK\n", tablePath, t.Len(), len(t.Schema.Columns))
	return nil
}

func diffSchemas(w io.Writer, aPath, bPath string) error {
	a, err := table.ReadSchema(aPath)
	if err != nil {
		return err
	}
	b, err := table.ReadSchema(bPath)
	if err != nil {
		return err
	}
	if err := table.Compare(a, b); err != nil {
		printMismatch(w, err)
		return err
	}
	_, _ = fmt.Fprintln(w, "schemas match")
	return nil
}

func printMismatch(w io.Writer, err error) {
	var sme *table.SchemaMismatchError
	if !errors.As(err, &sme) {
		return
	}
	for _, d := range sme.Details {
		_, _ = fmt.Fprintf(w, "- %s\n", d)
	}
}
