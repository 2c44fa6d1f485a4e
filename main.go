package main

import (
	"flag"
	"fmt"
	"github.com/joho/godotenv"
	"os"
	"smd/internal/di"
	"smd/internal/structures"
)

func main() {
	flags := &structures.CliFlags{}
	flag.StringVar(&flags.ConfigPath, "config", "./config.yaml", "path to the configuration file")
	flag.BoolVar(&flags.DebugMode, "debug", false, "enable debug logging")
	flag.Parse()

	// Optional .env for local development, ignored when absent.
	_ = godotenv.Load()

	if _, err := di.InitApp(flags); err != nil {
		fmt.Fprintf(os.Stderr, "smd: %s\n", err)
		os.Exit(1)
	}
}
