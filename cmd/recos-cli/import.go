package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/localrecos/recos-engine/internal/storage"
)

// importFile is the on-disk format read by the import command. JSON is
// accepted too since it parses as YAML.
type importFile struct {
	Restaurants []storage.NewRestaurant `yaml:"restaurants"`
}

// loadImportFile reads and validates every restaurant before anything is stored.
func loadImportFile(path string) ([]storage.NewRestaurant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	var f importFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse import file: %w", err)
	}
	if len(f.Restaurants) == 0 {
		return nil, fmt.Errorf("no restaurants in %s", path)
	}

	for i, r := range f.Restaurants {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("restaurant %d (%q): %w", i+1, r.Name, err)
		}
	}
	return f.Restaurants, nil
}

// newImportCmd creates the import subcommand.
func newImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import restaurants from a YAML file",
		Long: `Import stores restaurants listed under a top-level "restaurants" key.
The whole file is validated before the first record is written, and
cached search results are invalidated afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := loadImportFile(args[0])
			if err != nil {
				return err
			}

			if dryRun {
				if outputJSON {
					return ui.JSON(map[string]interface{}{"valid": len(items), "imported": 0})
				}
				ui.Success("%d restaurants are valid", len(items))
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			application, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			start := time.Now()
			bar := ui.ProgressBar(len(items), "Importing")
			n, err := application.Service.Import(ctx, items, func(r storage.Restaurant) {
				logger.Debug().Int64("id", r.ID).Str("name", r.Name).Msg("Imported restaurant")
				if bar != nil {
					_ = bar.Add(1)
				}
			})
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return fmt.Errorf("import stopped after %d restaurants: %w", n, err)
			}

			if outputJSON {
				return ui.JSON(map[string]interface{}{
					"valid":    len(items),
					"imported": n,
					"duration": time.Since(start).String(),
				})
			}
			ui.Success("Imported %d restaurants in %s", n, FormatDuration(time.Since(start)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without storing anything")

	return cmd
}
