package main

import (
	"os"

	"github.com/metapromptlabs/metaprompt/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
