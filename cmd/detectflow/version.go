package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type buildInfo struct {
	Version    string         `json:"version"`
	Commit     string         `json:"commit"`
	Built      string         `json:"built"`
	Go         string         `json:"go"`
	Platform   string         `json:"platform"`
	Registered map[string]int `json:"registered"`
}

func currentBuildInfo() buildInfo {
	registered := make(map[string]int)
	for _, group := range builtinTypes() {
		registered[group.Kind] = len(group.Types)
	}
	return buildInfo{
		Version:    version,
		Commit:     commit,
		Built:      date,
		Go:         runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		Registered: registered,
	}
}

func newVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display build information and the registered operator counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := currentBuildInfo()
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "detectflow %s (%s, built %s) %s %s\n", info.Version, info.Commit, info.Built, info.Go, info.Platform)
			fmt.Fprintf(out, "%d operators, %d detectors, %d enumerators\n",
				info.Registered["operator"], info.Registered["detector"], info.Registered["enumerator"])
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
