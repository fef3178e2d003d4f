package main

import (
	"os"

	"github.com/xkilldash9x/h2wire/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
