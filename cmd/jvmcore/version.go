package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set at build time:
//
//	go build -ldflags "-X main.version=v0.2.0" ./cmd/jvmcore
var version = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of jvmcore",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString(version, readBuildInfo))
	},
}

func readBuildInfo() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}

// versionString prefers the linker-set version, then the module version
// recorded by go install, then "devel".
func versionString(linked string, info func() (*debug.BuildInfo, bool)) string {
	v := linked
	if v == "" {
		if bi, ok := info(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}
	if v == "" {
		v = "devel"
	}
	return fmt.Sprintf("jvmcore version %s (%s)", v, runtime.Version())
}
