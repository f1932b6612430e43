package main

import (
	"fmt"
	"os"
)

func main() {
	args := os.Args[1:]
	useSubCommand := len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-'
	if useSubCommand {
		subCommand := args[0]
		args = args[1:]
		switch subCommand {
		case "daemon":
			runDaemon(args)
		default:
			fmt.Fprintf(os.Stderr, "invalid sub-command '%v'\n", subCommand)
			os.Exit(1)
		}
	} else {
		runDaemon(args)
	}
}
