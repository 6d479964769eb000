package main

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/specharvest/internal/index"
	"github.com/mohammad-safakhou/specharvest/tools/web_fetch"
	"github.com/spf13/cobra"
)

func parseCMD(load configLoader) *cobra.Command {
	var (
		baseURL   string
		indexPath string
	)
	var parse = &cobra.Command{
		Use:   "parse",
		Short: "Parse an index file and print its link records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if baseURL == "" {
				return fmt.Errorf("--url is required")
			}
			text, err := readIndexFile(indexPath)
			if err != nil {
				return err
			}
			base, indexURL := index.Location(cfg.Index, baseURL)
			if indexPath == "" {
				fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Fetch.Type), web_fetch.Options{
					Timeout:   cfg.Fetch.Timeout,
					UserAgent: cfg.Fetch.UserAgent,
					MaxBytes:  cfg.Fetch.MaxContentBytes,
				})
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Fetch.Timeout)
				defer cancel()
				res, err := fetcher.Exec(ctx, indexURL)
				if err != nil {
					return fmt.Errorf("download index: %w", err)
				}
				text = res.Body
			}

			parsed, err := index.NewParser(cfg.Index, base).ParseIndex(text)
			if err != nil {
				return err
			}
			records, err := index.Filter{Keywords: cfg.Index.Keywords, Include: cfg.Index.Include, Exclude: cfg.Index.Exclude}.Apply(parsed.Records)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"count":    len(records),
				"sections": index.SectionCounts(records),
				"records":  records,
				"failures": parsed.Failures,
			})
		},
	}
	parse.Flags().StringVar(&baseURL, "url", "", "documentation base address")
	parse.Flags().StringVar(&indexPath, "index", "", "local index file (- for stdin); downloaded from --url when empty")
	return parse
}
