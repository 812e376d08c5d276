package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/condaforge/condabuild/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the condabuild version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(buildinfo.Version())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
