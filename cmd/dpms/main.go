package main

import (
	"fmt"
	"os"

	"dpmserver/cmd/dpms/commands"
	"dpmserver/pkg/logging"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, logging.ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
