package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"fno-signals/internal/cli"
)

var loadEnvFunc = godotenv.Load

func main() {
	// A missing .env is fine; SIGNALS_* may come from the environment.
	_ = loadEnvFunc()

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
