package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skywavefm/onair/internal/catalog"
	"github.com/skywavefm/onair/internal/config"
)

var validateCatalogCmd = &cobra.Command{
	Use:   "validate-catalog",
	Short: "load a catalog file and report errors without starting the broadcaster",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("no --path given and no config available: %w", err)
			}
			path = cfg.CatalogPath
		}

		tracks, err := catalog.Load(path)
		if err != nil {
			return err
		}
		fmt.Printf("catalog ok: %d tracks\n", len(tracks))
		return nil
	},
}

func init() {
	validateCatalogCmd.Flags().String("path", "", "path to the catalog JSON file (defaults to ONAIR_CATALOG_PATH)")
}
