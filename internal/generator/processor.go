package generator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/partsflow/descgen-backend/internal/platform/logger"
)

// SheetStore is the slice of the sheet gateway the processor needs: one bulk
// read at the start of a run, then cell-level writes.
type SheetStore interface {
	ReadAllRows(ctx context.Context) ([][]string, error)
	WriteCell(ctx context.Context, row, col int, value string) error
}

// TextGenerator produces description text for one row.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// ProcessOptions bound one run over the row range.
type ProcessOptions struct {
	// StartRow and EndRow are inclusive 1-based sheet rows. EndRow 0 means
	// run to the end of the sheet.
	StartRow int
	EndRow   int
	// Limit stops the run after this many successfully processed rows.
	// 0 means no limit.
	Limit int
	// Sleep is an optional pause between rows.
	Sleep time.Duration
	// Template overrides the built-in prompt templates when non-empty.
	Template string
	// Stopped is polled between rows; in-flight model calls are not
	// interrupted.
	Stopped func() bool
	// Progress receives operator-facing run events (level is one of
	// info/success/error) for live streaming. Optional.
	Progress func(level, format string, args ...interface{})
}

func (o ProcessOptions) progress(level, format string, args ...interface{}) {
	if o.Progress != nil {
		o.Progress(level, format, args...)
	}
}

// Processor walks the configured row range sequentially, generating and
// committing descriptions cell by cell. A failure on one row never aborts
// the batch.
type Processor struct {
	log     *logger.Logger
	store   SheetStore
	gen     TextGenerator
	cols    ColumnMap
	force   bool
	dryRun  bool
	preview func(row int, text string)
}

func NewProcessor(log *logger.Logger, store SheetStore, gen TextGenerator, cols ColumnMap, force, dryRun bool) *Processor {
	return &Processor{
		log:    log.With("component", "RowProcessor"),
		store:  store,
		gen:    gen,
		cols:   cols,
		force:  force,
		dryRun: dryRun,
	}
}

// SetPreview registers a callback invoked with generated text in dry-run
// mode instead of writing to the sheet.
func (p *Processor) SetPreview(fn func(row int, text string)) { p.preview = fn }

// Process runs the range and returns the number of rows successfully updated
// (or previewed, in dry-run mode).
func (p *Processor) Process(ctx context.Context, opts ProcessOptions) (int, error) {
	if opts.StartRow < 1 {
		opts.StartRow = 2
	}
	if opts.EndRow != 0 && opts.EndRow < opts.StartRow {
		return 0, &ConfigError{Reason: "start row must be before end row"}
	}

	rows, err := p.store.ReadAllRows(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	var totalTime time.Duration

	for i, raw := range rows {
		rowIdx := i + 1
		if rowIdx < opts.StartRow {
			continue
		}
		if opts.EndRow != 0 && rowIdx > opts.EndRow {
			break
		}
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if opts.Stopped != nil && opts.Stopped() {
			p.log.Info("Stop requested, not processing further rows", "row", rowIdx)
			break
		}

		rec := p.rowRecord(rowIdx, raw)

		if rec.Name == "" || (p.cols.HasArticle() && rec.Article == "") {
			p.log.Debug("Skipping row with missing required fields", "row", rowIdx)
			continue
		}
		if rec.Description != "" && !p.force {
			p.log.Debug("Skipping row with existing description", "row", rowIdx)
			continue
		}

		p.log.Info("Processing row", "row", rowIdx, "article", rec.Article, "name", rec.Name)
		opts.progress("info", "Строка %d | %s | %s", rowIdx, rec.Article, rec.Name)

		started := time.Now()
		text, err := p.gen.Generate(ctx, GenerationRequest{
			Article:  rec.Article,
			Name:     rec.Name,
			Template: opts.Template,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return processed, err
			}
			p.log.Error("Generation failed for row", "row", rowIdx, "article", rec.Article, "error", err)
			opts.progress("error", "Ошибка генерации для строки %d: %v", rowIdx, err)
			continue
		}
		elapsed := time.Since(started)
		totalTime += elapsed

		if p.dryRun {
			if p.preview != nil {
				p.preview(rowIdx, text)
			}
			p.log.Info("Dry run, not writing", "row", rowIdx, "preview", previewText(text))
			opts.progress("info", "(dry-run) %s", previewText(text))
		} else {
			if err := p.store.WriteCell(ctx, rowIdx, p.cols.Description, text); err != nil {
				p.log.Error("Failed to write description", "row", rowIdx, "error", err)
				opts.progress("error", "Не удалось обновить строку %d: %v", rowIdx, err)
				continue
			}
			p.log.Info("Description written", "row", rowIdx)
			opts.progress("success", "Строка %d записана", rowIdx)
		}

		p.log.Info("Row timing", "row", rowIdx, "elapsed", elapsed.Round(10*time.Millisecond).String())
		processed++

		if opts.Limit > 0 && processed >= opts.Limit {
			break
		}
		if opts.Sleep > 0 {
			time.Sleep(opts.Sleep)
		}
	}

	if processed > 0 {
		avg := totalTime / time.Duration(processed)
		p.log.Info("Run complete",
			"processed", processed,
			"avg_latency", avg.Round(10*time.Millisecond).String(),
			"total_llm_time", totalTime.Round(10*time.Millisecond).String(),
		)
		opts.progress("info", "Среднее время: %.2f с (обработано %d)", avg.Seconds(), processed)
	} else {
		p.log.Info("Run complete, no rows processed")
	}

	return processed, nil
}

// RowRecord is the transient per-row view derived from raw cell values.
type RowRecord struct {
	Row         int
	Article     string
	Name        string
	Description string
}

func (p *Processor) rowRecord(rowIdx int, raw []string) RowRecord {
	rec := RowRecord{Row: rowIdx}
	rec.Article = cellAt(raw, p.cols.Article)
	rec.Name = cellAt(raw, p.cols.Name)
	rec.Description = cellAt(raw, p.cols.Description)
	return rec
}

func cellAt(row []string, col int) string {
	if col < 1 || col > len(row) {
		return ""
	}
	return strings.TrimSpace(row[col-1])
}

func previewText(text string) string {
	flat := strings.ReplaceAll(text, "\n", " ")
	if r := []rune(flat); len(r) > 100 {
		return string(r[:100]) + "..."
	}
	return flat
}
