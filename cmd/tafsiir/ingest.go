package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/omartood/tafsiir-agent/config"
	"github.com/omartood/tafsiir-agent/internal/ingest"
	gemini_provider "github.com/omartood/tafsiir-agent/provider/gemini"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var corpusPath string
	var storePath string
	var chunkSize int

	var cmd = &cobra.Command{
		Use:   "ingest",
		Short: "Rebuild the vector store from the Quran corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if corpusPath != "" {
				cfg.Ingest.CorpusPath = corpusPath
			}
			if storePath != "" {
				cfg.Ingest.StorePath = storePath
			}
			if chunkSize > 0 {
				cfg.Ingest.ChunkSize = chunkSize
			}

			// validate credentials before anything destructive happens to
			// the existing store
			key := cfg.Gemini.ResolveAPIKey()
			if err := config.ValidateAPIKey(key); err != nil {
				return err
			}

			logger := log.New(os.Stderr, "[INGEST] ", log.LstdFlags)
			prov := gemini_provider.NewClient(key, cfg.Gemini.BaseURL, cfg.Gemini.EmbeddingModel,
				cfg.Gemini.Temperature, cfg.Gemini.MaxOutputTokens, cfg.Gemini.Timeout)

			runner := ingest.New(cfg.Ingest, prov, logger, nil)
			report, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			logger.Printf("ingestion complete: %d chunks, %d bytes, %d failed",
				report.ChunkCount, report.SizeBytes, report.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "corpus JSON file (default from config)")
	cmd.Flags().StringVar(&storePath, "store", "", "vector store file (default from config)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "verses per chunk (default from config)")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
