package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// API keys usually live in .env during local development
	_ = godotenv.Load()

	var root = &cobra.Command{
		Use:   "tafsiir",
		Short: "Somali Quran tafsiir retrieval and chat service",
	}
	root.AddCommand(ingestCMD(), serveCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
