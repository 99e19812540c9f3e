package main

import (
	"os"
	_ "time/tzdata"

	"notecard-review-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
