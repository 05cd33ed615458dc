package main

import (
	"os"

	"github.com/solatis/normprops/cmd/normprops/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
