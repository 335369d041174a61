package main

import (
	"os"

	"github.com/kirillkom/pageindex-recall/cmd/recallctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
