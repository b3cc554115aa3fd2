package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/samply/golang-fhir-models/fhir-models/fhir"
	"github.com/spf13/cobra"
	"github.com/synaptica-ai/patho-fhir/pkg/common/config"
	"github.com/synaptica-ai/patho-fhir/pkg/common/logger"
	"github.com/synaptica-ai/patho-fhir/pkg/pathology"
	"github.com/synaptica-ai/patho-fhir/pkg/processor"
)

func mapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map a single record file and print the bundle",
	}
	cmd.AddCommand(mapRecordCmd("report", func(ctx context.Context, engine *processor.Engine, payload []byte) (*fhir.Bundle, error) {
		var rec pathology.Report
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		return engine.MapReport(ctx, &rec)
	}))
	cmd.AddCommand(mapRecordCmd("specimen", func(ctx context.Context, engine *processor.Engine, payload []byte) (*fhir.Bundle, error) {
		var rec pathology.Specimen
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode specimen: %w", err)
		}
		return engine.MapSpecimen(ctx, &rec)
	}))
	return cmd
}

type mapFunc func(ctx context.Context, engine *processor.Engine, payload []byte) (*fhir.Bundle, error)

func mapRecordCmd(kind string, run mapFunc) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   kind,
		Short: fmt.Sprintf("Map one %s record (JSON) to a FHIR bundle", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(cfg.LogLevel, cfg.LogFormat)
			logger.Log.SetOutput(cmd.ErrOrStderr())

			payload, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			engine, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			b, err := run(cmd.Context(), engine, payload)
			if err != nil {
				if pathology.IsRejection(err) {
					return fmt.Errorf("%s rejected (%s): %w", kind, pathology.RejectionKind(err), err)
				}
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "record file, - for stdin")
	return cmd
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(file)
}
