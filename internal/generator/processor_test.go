package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type memStore struct {
	rows      [][]string
	writes    []write
	writeErr  map[int]error // row -> error
	readErr   error
	readCalls int
}

type write struct {
	row, col int
	value    string
}

func (m *memStore) ReadAllRows(_ context.Context) ([][]string, error) {
	m.readCalls++
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.rows, nil
}

func (m *memStore) WriteCell(_ context.Context, row, col int, value string) error {
	if err, ok := m.writeErr[row]; ok {
		return err
	}
	m.writes = append(m.writes, write{row: row, col: col, value: value})
	// Mirror the write into the in-memory sheet so a re-run sees it.
	for len(m.rows) < row {
		m.rows = append(m.rows, nil)
	}
	for len(m.rows[row-1]) < col {
		m.rows[row-1] = append(m.rows[row-1], "")
	}
	m.rows[row-1][col-1] = value
	return nil
}

type stubGenerator struct {
	calls int
	gen   func(req GenerationRequest) (string, error)
}

func (s *stubGenerator) Generate(_ context.Context, req GenerationRequest) (string, error) {
	s.calls++
	if s.gen != nil {
		return s.gen(req)
	}
	return "Описание для " + req.Name, nil
}

func threeColMap() ColumnMap {
	return ColumnMap{Article: 1, Name: 2, Description: 3}
}

func newTestProcessor(t *testing.T, store *memStore, gen TextGenerator, force, dryRun bool) *Processor {
	t.Helper()
	return NewProcessor(newTestLogger(t), store, gen, threeColMap(), force, dryRun)
}

func TestProcess_FillsOnlyEmptyDescriptions(t *testing.T) {
	store := &memStore{rows: [][]string{
		{"Артикул", "Наименование", "Описание"},
		{"A1", "Bolt", ""},
		{"A2", "Nut", "existing"},
	}}
	gen := &stubGenerator{}

	p := newTestProcessor(t, store, gen, false, false)
	processed, err := p.Process(context.Background(), ProcessOptions{StartRow: 2, EndRow: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed row, got %d", processed)
	}
	if len(store.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(store.writes))
	}
	w := store.writes[0]
	if w.row != 2 || w.col != 3 {
		t.Fatalf("wrote to row %d col %d, expected row 2 col 3", w.row, w.col)
	}
	if w.value != "Описание для Bolt" {
		t.Fatalf("unexpected written text: %q", w.value)
	}
	if store.rows[2][2] != "existing" {
		t.Fatalf("row 3 description was overwritten: %q", store.rows[2][2])
	}
}

func TestProcess_RerunIsIdempotent(t *testing.T) {
	store := &memStore{rows: [][]string{
		{"Артикул", "Наименование", "Описание"},
		{"A1", "Bolt", ""},
		{"A2", "Nut", "existing"},
	}}
	gen := &stubGenerator{}
	p := newTestProcessor(t, store, gen, false, false)

	if _, err := p.Process(context.Background(), ProcessOptions{StartRow: 2, EndRow: 3}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	processed, err := p.Process(context.Background(), ProcessOptions{StartRow: 2, EndRow: 3})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if processed != 0 {
		t.Fatalf("second run processed %d rows, expected 0", processed)
	}
	if gen.calls != 1 {
		t.Fatalf("generator invoked %d times across both runs, expected 1", gen.calls)
	}
}

func TestProcess_ForceOverwritesExisting(t *testing.T) {
	store := &memStore{rows: [][]string{
		{"Артикул", "Наименование", "Описание"},
		{"A2", "Nut", "existing"},
	}}
	p := newTestProcessor(t, store, &stubGenerator{}, true, false)

	processed, err := p.Process(context.Background(), ProcessOptions{StartRow: 2, EndRow: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected force run to rewrite the row, got %d", processed)
	}
	if store.rows[1][2] != "Описание для Nut" {
		t.Fatalf("description not overwritten: %q", store.rows[1][2])
	}
}

func TestProcess_SkipsRowsMissingRequiredFields(t *testing.T) {
	store := &memStore{rows: [][]string{
		{"Артикул", "Наименование", "Описание"},
		{"", "Bolt", ""},   // no article
		{"A2", "", ""},     // no name
		{"A3", "Gear", ""}, // complete
	}}
	gen := &stubGenerator{}
	p := newTestProcessor(t, store, gen, false, false)

	processed, err := p.Process(context.Background(), ProcessOptions{StartRow: 2, EndRow: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected only the complete row, got %d", processed)
	}
	if gen.calls != 1 {
		t.Fatalf("generator invoked for incomplete rows: %d calls", gen.calls)
	}
}

func TestProcess_NoArticleColumnProcessesNamedRows(t *testing.T) {
	store := &memStore{rows: [][]string{
		{"Наименование", "Описание"},
		{"Bolt", ""},
	}}
	p := NewProcessor(newTestLogger(t), store, &stubGenerator{}, ColumnMap{Name: 1, Description: 2}, false, false)

	processed, err := p.Process(context.Background(), ProcessOptions{StartRow: 2, EndRow: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed row without an article column, got %d", processed)
	}
}

func TestProcess_GenerationFailureContinuesBatch(t *testing.T) {
	rows := [][]string{{"Артикул", "Наименование", "Описание"}}
	for i := 1; i <= 10; i++ {
		rows = append(rows, []string{fmt.Sprintf("A%d", i), fmt.Sprintf("Part %d", i), ""})
	}
	store := &memStore{rows: rows}
	gen := &stubGenerator{gen: func(req GenerationRequest) (string, error) {
		if req.Article == "A4" { // sheet row 5
			return "", &GenerationError{Last: ErrInvalidText}
		}
		return "Описание для " + req.Name, nil
	}}

	var errEvents int
	p := newTestProcessor(t, store, gen, false, false)
	processed, err := p.Process(context.Background(), ProcessOptions{
		StartRow: 2,
		EndRow:   11,
		Progress: func(level, _ string, _ ...interface{}) {
			if level == "error" {
				errEvents++
			}
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 9 {
		t.Fatalf("expected 9 of 10 rows processed, got %d", processed)
	}
	if errEvents != 1 {
		t.Fatalf("expected 1 error progress event, got %d", errEvents)
	}
	for _, w := range store.writes {
		if w.row == 5 {
			t.Fatalf("failed row 5 must not be written")
		}
	}
}

func TestProcess_WriteFailureContinuesBatch(t *testing.T) {
	store := &memStore{
		rows: [][]string{
			{"Артикул", "Наименование", "Описание"},
			{"A1", "Bolt", ""},
			{"A2", "Nut", ""},
		},
		writeErr: map[int]error{2: errors.New("quota exceeded")},
	}
	p := newTestProcessor(t, store, &stubGenerator{}, false, false)

	processed, err := p.Process(context.Background(), ProcessOptions{StartRow: 2, EndRow: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 committed row after a write failure, got %d", processed)
	}
	if len(store.writes) != 1 || store.writes[0].row != 3 {
		t.Fatalf("expected only row 3 written, got %+v", store.writes)
	}
}

func TestProcess_LimitStopsEarly(t *testing.T) {
	rows := [][]string{{"Артикул", "Наименование", "Описание"}}
	for i := 1; i <= 5; i++ {
		rows = append(rows, []string{fmt.Sprintf("A%d", i), fmt.Sprintf("Part %d", i), ""})
	}
	store := &memStore{rows: rows}
	gen := &stubGenerator{}
	p := newTestProcessor(t, store, gen, false, false)

	processed, err := p.Process(context.Background(), ProcessOptions{StartRow: 2, Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected limit of 2, got %d", processed)
	}
	if gen.calls != 2 {
		t.Fatalf("generator invoked %d times, expected 2", gen.calls)
	}
}

func TestProcess_StopFlagHaltsBetweenRows(t *testing.T) {
	rows := [][]string{{"Артикул", "Наименование", "Описание"}}
	for i := 1; i <= 5; i++ {
		rows = append(rows, []string{fmt.Sprintf("A%d", i), fmt.Sprintf("Part %d", i), ""})
	}
	store := &memStore{rows: rows}
	gen := &stubGenerator{}
	p := newTestProcessor(t, store, gen, false, false)

	stopAfter := 2
	processed, err := p.Process(context.Background(), ProcessOptions{
		StartRow: 2,
		Stopped:  func() bool { return gen.calls >= stopAfter },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != stopAfter {
		t.Fatalf("expected %d rows before stop, got %d", stopAfter, processed)
	}
}

func TestProcess_DryRunPreviewsWithoutWriting(t *testing.T) {
	store := &memStore{rows: [][]string{
		{"Артикул", "Наименование", "Описание"},
		{"A1", "Bolt", ""},
	}}
	p := newTestProcessor(t, store, &stubGenerator{}, false, true)

	var previews []string
	p.SetPreview(func(_ int, text string) { previews = append(previews, text) })

	processed, err := p.Process(context.Background(), ProcessOptions{StartRow: 2, EndRow: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 previewed row, got %d", processed)
	}
	if len(store.writes) != 0 {
		t.Fatalf("dry run wrote %d cells", len(store.writes))
	}
	if len(previews) != 1 || previews[0] != "Описание для Bolt" {
		t.Fatalf("unexpected previews: %v", previews)
	}
}

func TestProcess_InvalidRangeIsConfigError(t *testing.T) {
	store := &memStore{rows: [][]string{{"Артикул", "Наименование", "Описание"}}}
	p := newTestProcessor(t, store, &stubGenerator{}, false, false)

	_, err := p.Process(context.Background(), ProcessOptions{StartRow: 10, EndRow: 3})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if store.readCalls != 0 {
		t.Fatalf("sheet must not be read when the range is invalid")
	}
}

func TestProcess_ContextCancelAborts(t *testing.T) {
	store := &memStore{rows: [][]string{
		{"Артикул", "Наименование", "Описание"},
		{"A1", "Bolt", ""},
		{"A2", "Nut", ""},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	gen := &stubGenerator{gen: func(req GenerationRequest) (string, error) {
		cancel() // cancel mid-run; the next row must not start
		return "Описание для " + req.Name, nil
	}}
	p := newTestProcessor(t, store, gen, false, false)

	processed, err := p.Process(ctx, ProcessOptions{StartRow: 2, EndRow: 3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 row before cancellation, got %d", processed)
	}
	if gen.calls != 1 {
		t.Fatalf("generator invoked %d times after cancel, expected 1", gen.calls)
	}
}

func TestPreviewText_TruncatesRuneSafe(t *testing.T) {
	long := ""
	for i := 0; i < 120; i++ {
		long += "я"
	}
	got := previewText(long)
	if r := []rune(got); len(r) != 103 {
		t.Fatalf("expected 100 runes plus ellipsis, got %d runes: %q", len(r), got)
	}
	got = previewText("первая\nвторая")
	if got != "первая вторая" {
		t.Fatalf("newlines not flattened: %q", got)
	}
}
