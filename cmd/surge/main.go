package main

import (
	"os"

	"github.com/wesleyorama2/surge/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
