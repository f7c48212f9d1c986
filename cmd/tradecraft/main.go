package main

import (
	"os"

	"github.com/wonny/tradecraft/cmd/tradecraft/commands"
)

// main is the entry point for the tradecraft CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/tradecraft [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
