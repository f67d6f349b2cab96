package main

import (
	"os"

	"github.com/fleecekm/fleeceqa/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
