package cmd

import (
	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/llm"
	"github.com/fleecekm/fleeceqa/internal/pipeline"
	"github.com/fleecekm/fleeceqa/internal/questions"
	"github.com/fleecekm/fleeceqa/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the paragraph corpus and generated questions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		addr := e.cfg.Server.Addr
		if a, _ := cmd.Flags().GetString("addr"); a != "" {
			addr = a
		}
		if e.cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx := cmd.Context()
		var gen pipeline.Generator
		if readOnly, _ := cmd.Flags().GetBool("read-only"); !readOnly {
			provider, err := llm.NewProvider(ctx, e.cfg.LLM, e.store.EventRepo(), e.logger)
			if err != nil {
				e.logger.Warn("generation endpoint disabled", zap.Error(err))
			} else {
				gen = questions.New(provider, e.cfg.Generation.Config, e.logger)
			}
		}

		color.Cyan("Serving on %s", addr)
		return server.New(e.store, gen, e.cfg.Generation.Mode, e.logger).Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides config, default :8000)")
	serveCmd.Flags().Bool("read-only", false, "Disable the generation endpoint")
}
