package main

import (
	"fmt"

	"github.com/mohammad-safakhou/specharvest/internal/pipeline"
	"github.com/mohammad-safakhou/specharvest/models"
	"github.com/spf13/cobra"
)

func runCMD(load configLoader) *cobra.Command {
	var (
		baseURL     string
		indexPath   string
		outDir      string
		concurrency int
	)
	var run = &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline once and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if outDir != "" {
				cfg.Output.Dir = outDir
			}
			if concurrency > 0 {
				cfg.Fetch.Concurrency = concurrency
			}
			indexText, err := readIndexFile(indexPath)
			if err != nil {
				return err
			}
			if baseURL == "" {
				return fmt.Errorf("--url is required")
			}

			ctx := cmd.Context()
			comps, err := pipeline.Build(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer comps.Close()

			state, err := comps.Store.Create(ctx, baseURL)
			if err != nil {
				return err
			}
			var report models.PipelineReport
			if indexPath != "" {
				report, err = comps.Pipeline.RunWithIndex(ctx, state, baseURL, indexText)
			} else {
				report, err = comps.Pipeline.Run(ctx, state, baseURL)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"run_id": state.ID, "report": report})
		},
	}
	run.Flags().StringVar(&baseURL, "url", "", "documentation base address")
	run.Flags().StringVar(&indexPath, "index", "", "local index file (- for stdin); downloaded from --url when empty")
	run.Flags().StringVar(&outDir, "out", "", "output directory (overrides output.dir)")
	run.Flags().IntVar(&concurrency, "concurrency", 0, "fetch workers (overrides fetch.concurrency)")
	return run
}
