package main

import (
	"os"

	"github.com/TFFe0123/woody-nest/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
