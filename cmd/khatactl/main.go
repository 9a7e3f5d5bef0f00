package main

import (
	"os"

	"github.com/khata-ledger/khata/cmd/khatactl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
