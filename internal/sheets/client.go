package sheets

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/partsflow/descgen-backend/internal/platform/logger"
)

// Gateway is the spreadsheet boundary consumed by the generation pipeline.
// Row and column indices are 1-based, matching how operators read the sheet.
type Gateway interface {
	ReadHeader(ctx context.Context, row int) ([]string, error)
	ReadAllRows(ctx context.Context) ([][]string, error)
	WriteCell(ctx context.Context, row, col int, value string) error
	// EnsureColumn returns the 1-based index of a column labeled label in the
	// given header row, claiming the first empty header cell or appending a
	// new column when none exists.
	EnsureColumn(ctx context.Context, headerRow int, label string) (int, error)
}

type Client struct {
	log           *logger.Logger
	srv           *sheetsv4.Service
	spreadsheetID string
	worksheet     string
}

func NewClient(ctx context.Context, log *logger.Logger, spreadsheetID, worksheet string) (*Client, error) {
	spreadsheetID = NormalizeSpreadsheetID(spreadsheetID)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id or URL required")
	}
	if strings.TrimSpace(worksheet) == "" {
		return nil, fmt.Errorf("worksheet name required")
	}

	credsPath, err := EnsureCredentialsFile("")
	if err != nil {
		return nil, err
	}

	b, err := readCredentials(credsPath)
	if err != nil {
		return nil, err
	}

	config, err := google.JWTConfigFromJSON(b, sheetsv4.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account file: %w", err)
	}

	srv, err := sheetsv4.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to build Sheets service: %w", err)
	}

	return &Client{
		log:           log.With("service", "SheetsClient", "spreadsheet_id", spreadsheetID, "worksheet", worksheet),
		srv:           srv,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
	}, nil
}

// NormalizeSpreadsheetID accepts either a bare spreadsheet ID or a full
// Google Sheets URL and returns the ID.
func NormalizeSpreadsheetID(input string) string {
	input = strings.TrimSpace(input)
	if marker := "spreadsheets/d/"; strings.Contains(input, marker) {
		rest := input[strings.Index(input, marker)+len(marker):]
		if i := strings.Index(rest, "/"); i >= 0 {
			return rest[:i]
		}
		return rest
	}
	return input
}

func (c *Client) ReadHeader(ctx context.Context, row int) ([]string, error) {
	if row < 1 {
		return nil, fmt.Errorf("header row must be >= 1, got %d", row)
	}
	readRange := fmt.Sprintf("%s!%d:%d", c.worksheet, row, row)
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to read header row %d: %w", row, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

func (c *Client) ReadAllRows(ctx context.Context) ([][]string, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, c.worksheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to read worksheet: %w", err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		rows = append(rows, toStrings(raw))
	}
	return rows, nil
}

func (c *Client) WriteCell(ctx context.Context, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("cell indices must be >= 1, got row=%d col=%d", row, col)
	}
	rangeStr := fmt.Sprintf("%s!%s%d", c.worksheet, ColumnLetters(col), row)
	val := &sheetsv4.ValueRange{Values: [][]interface{}{{value}}}
	_, err := c.srv.Spreadsheets.Values.Update(c.spreadsheetID, rangeStr, val).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to update cell %s: %w", rangeStr, err)
	}
	return nil
}

func (c *Client) EnsureColumn(ctx context.Context, headerRow int, label string) (int, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, fmt.Errorf("column label required")
	}

	header, err := c.ReadHeader(ctx, headerRow)
	if err != nil {
		return 0, err
	}

	col := len(header) + 1
	for i, cell := range header {
		if strings.TrimSpace(cell) == "" {
			col = i + 1
			break
		}
	}

	if err := c.WriteCell(ctx, headerRow, col, label); err != nil {
		return 0, fmt.Errorf("unable to create column %q: %w", label, err)
	}
	c.log.Info("Created description column", "label", label, "column", col)
	return col, nil
}

func toStrings(raw []interface{}) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprintf("%v", v)
	}
	return out
}

// ColumnLetters converts a 1-based column index to A1 notation letters
// (1 -> A, 26 -> Z, 27 -> AA).
func ColumnLetters(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}
