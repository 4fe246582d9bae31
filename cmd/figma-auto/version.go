package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghkdsigm/figma-auto/internal/version"
)

func newVersionCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if asJSON {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, string(out))
				return nil
			}
			fmt.Fprintf(a.out, "figma-auto %s\n", info)
			fmt.Fprintf(a.out, "Platform: %s\n", info.Platform)
			fmt.Fprintf(a.out, "Go: %s\n", info.GoVersion)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output version info as JSON")
	return cmd
}
