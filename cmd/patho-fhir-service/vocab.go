package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/patho-fhir/pkg/common/config"
	"github.com/synaptica-ai/patho-fhir/pkg/common/logger"
	"github.com/synaptica-ai/patho-fhir/pkg/terminology"
)

func vocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Inspect the vocabulary mapping tables",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load every mapping table and report row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(cfg.LogLevel, cfg.LogFormat)

			sources := vocabularySources(cfg)
			registry, err := terminology.NewLoader(cfg.MappingFetchTimeout).Load(context.Background(), sources)
			if err != nil {
				return err
			}
			for _, src := range sources {
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %5d rows  %s\n", src.Table, registry.Size(src.Table), src.Location)
			}
			return nil
		},
	})
	return cmd
}
