package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/fleecekm/fleeceqa/internal/dataset"
)

var loadCmd = &cobra.Command{
	Use:   "load <paragraphs.csv>",
	Short: "Load the paragraph corpus from a CSV file",
	Long: "Load reads the paragraph CSV into the database. The load runs once: " +
		"if the database already holds paragraphs nothing is read.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat csv: %w", err)
		}

		bar := progressbar.DefaultBytes(info.Size(), color.BlueString("reading paragraphs"))
		r := progressbar.NewReader(f, bar)

		res, err := dataset.Load(cmd.Context(), e.store, &r, e.logger)
		_ = bar.Finish()
		if err != nil {
			return err
		}

		if res.Skipped {
			color.Yellow("\nDatabase already holds %d paragraphs; nothing loaded.\n", res.Existing)
			return nil
		}
		color.Green("\n✓ Loaded %d paragraphs\n", res.Loaded)
		return nil
	},
}
