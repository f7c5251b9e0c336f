package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meridian-gw/meridian/pkg/balancer"
)

// Set by build flags:
//
//	go build -ldflags "-X main.Version=... -X main.GitCommit=... -X main.BuildDate=..."
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionFlags struct {
	short bool
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if versionFlags.short {
			fmt.Println(Version)
			return
		}
		fmt.Printf("meridian %s (%s, %s)\n", Version, GitCommit, BuildDate)
		fmt.Printf("  go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  strategies: %s\n", strings.Join(balancer.Names(), ", "))
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionFlags.short, "short", false, "print only the version number")
	rootCmd.AddCommand(versionCmd)
}
