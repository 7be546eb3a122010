package main

import (
	"os"

	"github.com/joho/godotenv"

	lookbookcmder "github.com/papercomputeco/lookbook/cmd/lookbook"
)

func main() {
	// A missing .env is fine; LOOKBOOK_* variables may come from the shell.
	_ = godotenv.Load()

	cmd := lookbookcmder.NewLookbookCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
