package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fleecekm/fleeceqa/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus progress and the last generation run",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		total, err := e.store.CountParagraphs(ctx)
		if err != nil {
			return err
		}
		unprocessed, err := e.store.CountUnprocessedParagraphs(ctx)
		if err != nil {
			return err
		}
		questionCount, err := e.store.CountQuestions(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Corpus")
		fmt.Println(strings.Repeat("─", 40))
		fmt.Printf("%-14s %10d\n", "Paragraphs", total)
		fmt.Printf("%-14s %10d\n", "Processed", total-unprocessed)
		fmt.Printf("%-14s %10d\n", "Remaining", unprocessed)
		fmt.Printf("%-14s %10d\n", "Questions", questionCount)
		if done := total - unprocessed; done > 0 {
			fmt.Printf("%-14s %10.2f\n", "Per paragraph", float64(questionCount)/float64(done))
		}

		runID, ok, err := e.store.GetMetadata(ctx, store.MetaLastRunID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		started, _, err := e.store.GetMetadata(ctx, store.MetaLastRunStart)
		if err != nil {
			return err
		}
		finished, _, err := e.store.GetMetadata(ctx, store.MetaLastRunEnd)
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println("Last run")
		fmt.Println(strings.Repeat("─", 40))
		fmt.Printf("%-14s %s\n", "ID", runID)
		fmt.Printf("%-14s %s\n", "Started", started)
		if finished == "" || finished < started {
			fmt.Printf("%-14s %s\n", "Finished", color.YellowString("running or aborted"))
		} else {
			fmt.Printf("%-14s %s\n", "Finished", finished)
		}
		return nil
	},
}
