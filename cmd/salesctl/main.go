package main

import (
	"os"

	"sales-dashboard/internal/cli"
)

func main() {
	if err := cli.Run(); err != nil {
		os.Exit(1)
	}
}
