package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/partsflow/descgen-backend/internal/platform/logger"
)

// ColumnMap holds the resolved 1-based column indices for a run. Article is 0
// when the sheet has no article column; Name and Description are always set.
type ColumnMap struct {
	Article     int
	Name        int
	Description int
}

// HasArticle reports whether the sheet carries an article column.
func (m ColumnMap) HasArticle() bool { return m.Article > 0 }

// HeaderConfig names the headers the resolver looks for.
type HeaderConfig struct {
	HeaderRow   int
	Article     string
	Name        string
	Description string
}

func DefaultHeaderConfig() HeaderConfig {
	return HeaderConfig{
		HeaderRow:   1,
		Article:     "Артикул",
		Name:        "Наименование",
		Description: "Описание",
	}
}

// ColumnCreator creates a missing description column in the backing sheet.
type ColumnCreator interface {
	EnsureColumn(ctx context.Context, headerRow int, label string) (int, error)
}

// ResolveColumns maps configured header names onto column indices. Lookup is
// by exact trimmed match; when a header appears twice the first occurrence
// wins. The name column is required. The article column is optional. A
// missing description column is created through creator.
func ResolveColumns(ctx context.Context, log *logger.Logger, header []string, cfg HeaderConfig, creator ColumnCreator) (ColumnMap, error) {
	var m ColumnMap

	m.Name = findColumn(header, cfg.Name)
	if m.Name == 0 {
		return m, &ConfigError{Reason: fmt.Sprintf("column %q not found in header row %d", cfg.Name, cfg.HeaderRow)}
	}

	m.Article = findColumn(header, cfg.Article)
	if m.Article == 0 {
		log.Warn("Article column not found, prompts will omit the article", "header", cfg.Article)
	}

	m.Description = findColumn(header, cfg.Description)
	if m.Description == 0 {
		if creator == nil {
			return m, &ConfigError{Reason: fmt.Sprintf("column %q not found in header row %d", cfg.Description, cfg.HeaderRow)}
		}
		col, err := creator.EnsureColumn(ctx, cfg.HeaderRow, cfg.Description)
		if err != nil {
			return m, &ConfigError{
				Reason: fmt.Sprintf("could not create column %q, pick an existing column instead", cfg.Description),
				Err:    err,
			}
		}
		m.Description = col
	}

	return m, nil
}

func findColumn(header []string, label string) int {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0
	}
	for i, cell := range header {
		if strings.TrimSpace(cell) == label {
			return i + 1
		}
	}
	return 0
}
