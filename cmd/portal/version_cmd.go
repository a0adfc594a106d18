package main

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			displayAppname(cmd.OutOrStdout(), c.cfg.GetAppName())
			fmt.Fprintf(cmd.OutOrStdout(), "version %s (%s)\n", Version, c.cfg.GetEnv())
		},
	}
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	figure.Write(w, myFigure)
	fmt.Fprintln(w)
}
