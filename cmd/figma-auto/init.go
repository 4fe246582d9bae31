package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ghkdsigm/figma-auto/internal/cli"
	"github.com/ghkdsigm/figma-auto/internal/config"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default " + config.Dir + "/" + config.FileName,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(a.projectDir)
			if errors.Is(err, os.ErrExist) {
				fmt.Fprintln(a.out, cli.Warn(fmt.Sprintf("%s already exists, left unchanged", path)))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.Success("Wrote "+path))
			fmt.Fprintln(a.out, cli.Muted("Set FIGMA_TOKEN in the environment; the token is never stored in the file."))
			return nil
		},
	}
}
