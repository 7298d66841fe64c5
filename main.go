// ./main.go
package main

import (
	"github.com/pagepilot-ai/pagepilot/cmd"
)

// main is the entry point for the pagepilot CLI. All command-line parsing,
// configuration loading and execution lives in the cmd package.
func main() {
	cmd.Execute()
}
