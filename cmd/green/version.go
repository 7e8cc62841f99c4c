package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/covercash2/green/pkg/nix"
)

var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the green build and the flake input it pins by default",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "green v%s (%s)\n", version, commit)
	fmt.Fprintf(out, "  default input: %s\n", nix.DefaultInput)
	fmt.Fprintf(out, "  rev label:     %q\n", nix.RevLabel)
	fmt.Fprintf(out, "  built with:    %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
