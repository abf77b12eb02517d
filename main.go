package main

import (
	"os"

	"github.com/weathernow/weathernow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
