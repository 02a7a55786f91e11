package main

import (
	"fmt"
	"os"

	"github.com/taskscheduler/core/cmd/taskschedulerctl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(commands.ExitCodeFor(err))
	}
}
