package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

var (
	ErrInvalidCredentials = errors.New("invalid service account credentials")

	spreadsheetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{30,}$`)
)

// GoogleOpener opens spreadsheets through the Sheets v4 API. Names are resolved with
// Drive v3 when the identifier does not look like a spreadsheet id.
type GoogleOpener struct {
	sheets *sheets.Service
	drive  *drive.Service
}

// NewGoogleOpener builds API clients from a service-account JSON blob.
func NewGoogleOpener(ctx context.Context, credentialsJSON []byte) (*GoogleOpener, error) {
	if err := ValidateCredentials(credentialsJSON); err != nil {
		return nil, err
	}

	sheetsSvc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}

	driveSvc, err := drive.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(drive.DriveMetadataReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}

	return &GoogleOpener{sheets: sheetsSvc, drive: driveSvc}, nil
}

// NewGoogleOpenerWithClient points both APIs at endpoint using hc, without authentication.
func NewGoogleOpenerWithClient(ctx context.Context, hc *http.Client, endpoint string) (*GoogleOpener, error) {
	opts := []option.ClientOption{
		option.WithHTTPClient(hc),
		option.WithEndpoint(endpoint),
		option.WithoutAuthentication(),
	}

	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleOpener{sheets: sheetsSvc, drive: driveSvc}, nil
}

// ValidateCredentials checks the blob is a service-account key before any API call.
func ValidateCredentials(b []byte) error {
	if !gjson.ValidBytes(b) {
		return fmt.Errorf("%w: not valid JSON", ErrInvalidCredentials)
	}
	for _, key := range []string{"client_email", "private_key"} {
		if gjson.GetBytes(b, key).String() == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidCredentials, key)
		}
	}
	return nil
}

func (o *GoogleOpener) Open(ctx context.Context, nameOrID string) (Spreadsheet, error) {
	id := strings.TrimSpace(nameOrID)
	if !spreadsheetIDPattern.MatchString(id) {
		resolved, err := o.lookupByName(ctx, id)
		if err != nil {
			return nil, err
		}
		id = resolved
	}

	ss, err := o.sheets.Spreadsheets.Get(id).
		Fields("spreadsheetId,properties.title,sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%q: %w", nameOrID, ErrSpreadsheetNotFound)
		}
		return nil, fmt.Errorf("open spreadsheet %q: %w", nameOrID, err)
	}

	tabs := make(map[string]bool, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			tabs[s.Properties.Title] = true
		}
	}

	title := id
	if ss.Properties != nil {
		title = ss.Properties.Title
	}
	slog.Debug("spreadsheet opened", "title", title, "id", id, "tabs", len(tabs))

	return &googleSpreadsheet{svc: o.sheets, id: id, title: title, tabs: tabs}, nil
}

func (o *GoogleOpener) lookupByName(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType)

	res, err := o.drive.Files.List().
		Q(q).
		Fields("files(id,name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		PageSize(2).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("find spreadsheet %q: %w", name, err)
	}
	if len(res.Files) == 0 {
		return "", fmt.Errorf("%q: %w", name, ErrSpreadsheetNotFound)
	}
	if len(res.Files) > 1 {
		slog.Warn("multiple spreadsheets share a name, using the first", "name", name, "id", res.Files[0].Id)
	}
	return res.Files[0].Id, nil
}

type googleSpreadsheet struct {
	svc   *sheets.Service
	id    string
	title string
	tabs  map[string]bool
}

func (s *googleSpreadsheet) Title() string {
	return s.title
}

func (s *googleSpreadsheet) Worksheet(ctx context.Context, tab string) (Worksheet, error) {
	if !s.tabs[tab] {
		return nil, fmt.Errorf("%q in %q: %w", tab, s.title, ErrWorksheetNotFound)
	}
	return &googleWorksheet{svc: s.svc, spreadsheetID: s.id, title: tab}, nil
}

type googleWorksheet struct {
	svc           *sheets.Service
	spreadsheetID string
	title         string

	mu     sync.Mutex
	header []string
}

func (w *googleWorksheet) Title() string {
	return w.title
}

func (w *googleWorksheet) ReadAll(ctx context.Context) (Table, error) {
	vr, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, quoteTab(w.title)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return Table{}, fmt.Errorf("read %q: %w", w.title, err)
	}

	grid := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		grid[i] = make([]string, len(row))
		for j, cell := range row {
			grid[i][j] = fmt.Sprint(cell)
		}
	}

	t, err := buildTable(w.title, grid)
	if err != nil {
		return Table{}, err
	}

	w.mu.Lock()
	w.header = t.Header
	w.mu.Unlock()
	return t, nil
}

func (w *googleWorksheet) WriteCell(ctx context.Context, readIndex int, column string, value any) error {
	w.mu.Lock()
	header := w.header
	w.mu.Unlock()

	if header == nil {
		return ErrNotRead
	}
	col := indexOf(header, column)
	if col < 0 {
		return fmt.Errorf("%q: %w %q", w.title, ErrUnknownColumn, column)
	}

	addr := CellAddress(w.title, readIndex, col)
	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, addr, &sheets.ValueRange{
		Values: [][]interface{}{{value}},
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", addr, err)
	}
	return nil
}
