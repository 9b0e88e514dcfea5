package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/partsflow/descgen-backend/internal/config"
	"github.com/partsflow/descgen-backend/internal/generator"
	"github.com/partsflow/descgen-backend/internal/platform/groq"
	"github.com/partsflow/descgen-backend/internal/platform/logger"
	"github.com/partsflow/descgen-backend/internal/platform/openrouter"
	"github.com/partsflow/descgen-backend/internal/sheets"
)

type flags struct {
	sheetID    string
	worksheet  string
	limit      int
	startRow   int
	endRow     int
	maxRetries int
	retryDelay float64
	sleep      float64
	logLevel   string
	force      bool
	dryRun     bool
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate product descriptions for a Google Sheets worksheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(f)
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&f.sheetID, "sheet-id", "", "spreadsheet ID or full URL")
	rootCmd.Flags().StringVar(&f.worksheet, "worksheet", "", "worksheet name")
	rootCmd.Flags().IntVar(&f.limit, "limit", 0, "max rows to process this run (0 = unlimited)")
	rootCmd.Flags().IntVar(&f.startRow, "start-row", 2, "first row to process (inclusive)")
	rootCmd.Flags().IntVar(&f.endRow, "end-row", 0, "last row to process (inclusive, 0 = to the end)")
	rootCmd.Flags().IntVar(&f.maxRetries, "max-retries", 3, "retries per model on LLM failure")
	rootCmd.Flags().Float64Var(&f.retryDelay, "retry-delay", 2.0, "pause between retries, seconds")
	rootCmd.Flags().Float64Var(&f.sleep, "sleep", 0, "pause between rows, seconds")
	rootCmd.Flags().StringVar(&f.logLevel, "log-level", "development", "log mode (development/production)")
	rootCmd.Flags().BoolVar(&f.force, "force", false, "overwrite existing descriptions")
	rootCmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "generate without writing to the sheet")
	_ = rootCmd.MarkFlagRequired("sheet-id")
	_ = rootCmd.MarkFlagRequired("worksheet")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func runGenerate(f flags) error {
	log, err := logger.New(f.logLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(log)
	if err != nil {
		return err
	}

	ctx := context.Background()

	gw, err := sheets.NewClient(ctx, log, f.sheetID, f.worksheet)
	if err != nil {
		return err
	}

	primary, err := groq.NewClient(log)
	if err != nil {
		return err
	}
	var secondary generator.SecondaryProvider
	if orClient, err := openrouter.NewClient(log); err != nil {
		log.Warn("Secondary provider unavailable", "error", err)
	} else {
		secondary = generator.OpenRouterProvider{Client: orClient}
	}

	headerCfg := cfg.HeaderConfig()
	header, err := gw.ReadHeader(ctx, headerCfg.HeaderRow)
	if err != nil {
		return err
	}
	cols, err := generator.ResolveColumns(ctx, log, header, headerCfg, gw)
	if err != nil {
		return err
	}

	engineCfg := cfg.EngineConfig()
	engineCfg.MaxRetries = f.maxRetries
	engineCfg.RetryDelay = time.Duration(f.retryDelay * float64(time.Second))

	engine := generator.NewEngine(log, generator.GroqProvider{Client: primary}, secondary,
		generator.DefaultValidator(), engineCfg)
	processor := generator.NewProcessor(log, gw, engine, cols, f.force, f.dryRun)

	count, err := processor.Process(ctx, generator.ProcessOptions{
		StartRow: f.startRow,
		EndRow:   f.endRow,
		Limit:    f.limit,
		Sleep:    time.Duration(f.sleep * float64(time.Second)),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Обработано строк: %d\n", count)
	return nil
}
