package main

import (
	"fmt"
	"os"

	"github.com/MrSnakeDoc/shelf/cmd/shelf/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ shelf failed: %v\n", err)
		os.Exit(1)
	}
}
