// Command clusters is the puzzle authoring tool: it writes skeleton puzzles,
// checks puzzle files, and builds or decodes share links.
//
// Usage:
//
//	clusters skeleton --groups 4 --size 4 > puzzle.json
//	clusters check puzzle.json
//	clusters share puzzle.json --base https://example.org/clusters/
//	clusters decode <payload>
//	clusters list [--dir puzzles/]
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
