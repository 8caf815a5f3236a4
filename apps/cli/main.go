package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/sukuu-hq/sukuu/apps/cli/root"
)

func main() {
	// .env is optional; flags read env defaults after this point.
	_ = godotenv.Load()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
