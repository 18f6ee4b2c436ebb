package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/solatis/logspec/cmd/logspec/cmd"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
