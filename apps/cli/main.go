package main

import (
	"fmt"
	"os"

	"github.com/novalearn-io/novalearn/apps/cli/root"
)

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
