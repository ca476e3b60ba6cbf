package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dumb-meh/Sui-Amor/config"
	"github.com/dumb-meh/Sui-Amor/internal/alignment"
	"github.com/dumb-meh/Sui-Amor/provider"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var ingest = &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest alignment sheets into the vector store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if err := cfg.Storage.Postgres.Validate(); err != nil {
				return err
			}
			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := alignment.NewWithDSN(ctx, cfg.Storage.Postgres.DSN(), llm)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				doc, err := store.Ingest(ctx, filepath.Base(path), content)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Printf("%s: document %s (%d chunks)\n", path, doc.ID, doc.Chunks)
			}
			return nil
		},
	}
	ingest.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return ingest
}
