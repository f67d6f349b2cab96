package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/fleecekm/fleeceqa/internal/llm"
	"github.com/fleecekm/fleeceqa/internal/pipeline"
	"github.com/fleecekm/fleeceqa/internal/questions"
	"github.com/fleecekm/fleeceqa/internal/store"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate questions for unprocessed paragraphs",
	Long: "Generate walks the unprocessed paragraphs, asks the configured LLM for " +
		"questions and keeps the ones that pass both answerability checks. " +
		"Each paragraph is committed on its own; a failed paragraph is rolled back " +
		"and skipped.",
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("mode", "", "Generation mode: multi or single (overrides config)")
	generateCmd.Flags().String("order", "", "Paragraph order: random or sequential (overrides config)")
	generateCmd.Flags().IntP("limit", "n", -1, "Stop after this many paragraphs (0 = no limit)")
	generateCmd.Flags().Int("paragraph", 0, "Process only the paragraph with this ID")
	generateCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	pc := e.cfg.PipelineConfig()
	if m, _ := cmd.Flags().GetString("mode"); m != "" {
		pc.Mode = pipeline.Mode(m)
	}
	if o, _ := cmd.Flags().GetString("order"); o != "" {
		pc.Order = pipeline.Order(o)
	}
	if n, _ := cmd.Flags().GetInt("limit"); n >= 0 {
		pc.Limit = n
	}
	if err := pc.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	provider, err := llm.NewProvider(ctx, e.cfg.LLM, e.store.EventRepo(), e.logger)
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}
	gen := questions.New(provider, e.cfg.Generation.Config, e.logger)
	driver := pipeline.New(e.store, gen, pc, e.logger)

	if id, _ := cmd.Flags().GetInt("paragraph"); id > 0 {
		return generateOne(cmd, e, driver, id)
	}

	remaining, err := e.store.CountUnprocessedParagraphs(ctx)
	if err != nil {
		return err
	}
	if remaining == 0 {
		color.Yellow("No unprocessed paragraphs.")
		return nil
	}
	total := remaining
	if pc.Limit > 0 && pc.Limit < total {
		total = pc.Limit
	}

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = newProgressBar(total, fmt.Sprintf("generating (%s)", pc.Mode))
	}
	var questionCount int
	driver.OnProgress(func(p store.Paragraph, ids []int, err error) {
		questionCount += len(ids)
		if bar == nil {
			return
		}
		bar.Describe(color.BlueString("generating (%s) %d questions", pc.Mode, questionCount))
		_ = bar.Add(1)
	})

	stats, runErr := driver.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
	}
	if !stats.Finished.IsZero() {
		printSummary(stats)
	}

	if runErr != nil && !errors.Is(runErr, ctx.Err()) {
		return runErr
	}
	return nil
}

func generateOne(cmd *cobra.Command, e *env, driver *pipeline.Driver, id int) error {
	ctx := cmd.Context()
	p, err := e.store.GetParagraph(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("paragraph %d not found", id)
	}
	if p.Processed != store.Unprocessed {
		return fmt.Errorf("paragraph %d already processed (order %d)", id, p.Processed)
	}

	ids, err := driver.ProcessParagraph(ctx, *p)
	if err != nil {
		return err
	}
	color.Green("✓ Paragraph %d: %d questions stored %v\n", id, len(ids), ids)
	return nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("paragraphs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func printSummary(stats pipeline.Stats) {
	elapsed := stats.Finished.Sub(stats.Started).Round(time.Second)
	fmt.Println()
	color.Cyan("Run %s finished in %s", stats.RunID, elapsed)
	color.Green("  processed  %d", stats.Processed)
	if stats.Failed > 0 {
		color.Red("  failed     %d", stats.Failed)
	} else {
		fmt.Printf("  failed     %d\n", stats.Failed)
	}
	fmt.Printf("  questions  %d\n", stats.Questions)
}
