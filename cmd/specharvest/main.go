package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/spf13/cobra"
)

func main() {
	var cfgPath string
	var root = &cobra.Command{
		Use:           "specharvest",
		Short:         "Harvest embedded API specifications from llms.txt documentation sites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")

	load := func() (*config.Config, error) { return config.LoadConfig(cfgPath) }
	root.AddCommand(serveCMD(load), runCMD(load), parseCMD(load), tokenCMD(load))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type configLoader func() (*config.Config, error)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readIndexFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read index: %w", err)
	}
	return string(b), nil
}
