package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/detectflow/internal/components"
	"github.com/alexisbeaulieu97/detectflow/internal/operators"
)

type operatorsOptions struct {
	jsonOutput bool
}

type typeGroup struct {
	Kind  string   `json:"kind"`
	Types []string `json:"types"`
}

func newOperatorsCmd() *cobra.Command {
	opts := &operatorsOptions{}

	cmd := &cobra.Command{
		Use:   "operators",
		Short: "List built-in operators and pluggable components",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperators(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func builtinTypes() []typeGroup {
	c := components.NewBuiltins()
	return []typeGroup{
		{Kind: "operator", Types: operators.NewRegistry().Types()},
		{Kind: "detector", Types: c.Detectors.Types()},
		{Kind: "data source", Types: c.DataFetchers.Types()},
		{Kind: "index filler", Types: c.IndexFillers.Types()},
		{Kind: "event trigger", Types: c.Triggers.Types()},
		{Kind: "post-processor", Types: c.PostProcessors.Types()},
		{Kind: "enumerator", Types: c.Enumerators.Types()},
	}
}

func runOperators(cmd *cobra.Command, opts *operatorsOptions) error {
	groups := builtinTypes()
	out := cmd.OutOrStdout()

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tTYPES")
	for _, group := range groups {
		fmt.Fprintf(tw, "%s\t%s\n", group.Kind, strings.Join(group.Types, ", "))
	}
	return tw.Flush()
}
