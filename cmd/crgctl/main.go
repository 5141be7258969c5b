package main

import (
	"fmt"
	"os"

	"github.com/danmuck/crgctl/cmd/crgctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "crgctl: %v\n", err)
		os.Exit(1)
	}
}
