package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/geoequity/internal/refdata"
)

var pathwaysCmd = &cobra.Command{
	Use:   "pathways",
	Short: "List recognized participation pathways and their weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return printPathways(cmd.OutOrStdout(), refdata.Default(), format)
	},
}

func init() {
	pathwaysCmd.Flags().String("format", "table", "output format: table or json")
	rootCmd.AddCommand(pathwaysCmd)
}

func printPathways(w io.Writer, tables *refdata.Tables, format string) error {
	list := tables.PathwayList()
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATHWAY\tWEIGHT\tUNIT\tNAME")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\n", p.Type, p.Weight, p.Unit, p.DisplayName)
	}
	return tw.Flush()
}
