// File: cmd/version.go
package cmd

import "github.com/spf13/cobra"

// Version is the application version. It is intended to be set at build time:
//
//	go build -ldflags "-X github.com/pagepilot-ai/pagepilot/cmd.Version=1.2.3"
var Version = "0.1.0-dev"

// newVersionCmd reports the binary version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pagepilot version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("pagepilot version " + Version)
		},
	}
}
