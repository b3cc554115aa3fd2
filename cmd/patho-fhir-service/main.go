package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "patho-fhir-service",
		Short: "Maps pathology reports and specimens to FHIR transaction bundles",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mapCmd())
	rootCmd.AddCommand(vocabCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
