package main

import (
	"fmt"
	"os"

	"github.com/samuelfneumann/goforce/cmd"
)

// main entry point to all experiments
func main() {
	rootCommand := cmd.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
