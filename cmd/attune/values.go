package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrypster/attune/internal/values"
)

func newValuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "values",
		Short: "Print the built-in core value hierarchy as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(values.DefaultValues()); err != nil {
				return fmt.Errorf("encode values: %w", err)
			}
			return nil
		},
	}
}
