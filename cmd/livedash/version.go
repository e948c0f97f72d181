package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/solarstation/livedash/pkg/version"
)

var versionShort = false

func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			if versionShort {
				cmd.Println(version.Version)
				return
			}
			cmd.Printf("livedash %s (commit %s, %s %s/%s)\n",
				version.Version, version.GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVar(&versionShort, "short", versionShort, "print the version number only")

	return cmd
}
