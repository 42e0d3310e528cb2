package main

import (
	"fmt"
	"os"

	"github.com/storypipe-dev/storypipe/cmd/storypipe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
