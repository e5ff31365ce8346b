package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rickgao/tradier-stream/internal/version"
)

func versionCmd() *cobra.Command {
	var short, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case short:
				fmt.Fprintln(out, version.Version)
			case asJSON:
				b, err := json.Marshal(version.Get())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(b))
			default:
				info := version.Get()
				fmt.Fprintf(out, "Version:    %s\n", info.Version)
				fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
				fmt.Fprintf(out, "Built:      %s\n", info.BuildTime)
				fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}
