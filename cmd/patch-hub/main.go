package main

import (
	"os"

	"github.com/nahharris/patch-hub/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
