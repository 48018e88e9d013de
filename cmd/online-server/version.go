package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version 由构建时 -ldflags "-X main.Version=..." 注入。
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", Version, runtime.Version())
			return err
		},
	}
}
