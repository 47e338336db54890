// Package sheets appends catalog rows to a Google Sheets spreadsheet.
package sheets

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/sells-group/places-catalog/internal/model"
)

// Credentials identifies the service account used to write the sheet.
type Credentials struct {
	ClientEmail     string
	PrivateKey      string // PEM; literal "\n" sequences are unescaped
	CredentialsFile string // takes precedence when set
}

// ClientOptions turns credentials into API client options.
func (c Credentials) ClientOptions() ([]option.ClientOption, error) {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if c.CredentialsFile != "" {
		return append(opts, option.WithCredentialsFile(c.CredentialsFile)), nil
	}
	if c.ClientEmail == "" || c.PrivateKey == "" {
		return nil, eris.New("sheets: client email and private key are required")
	}
	data, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"client_email": c.ClientEmail,
		"private_key":  strings.ReplaceAll(c.PrivateKey, `\n`, "\n"),
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, eris.Wrap(err, "sheets: encode credentials")
	}
	return append(opts, option.WithCredentialsJSON(data)), nil
}

// Appender writes business rows after the last row of a range.
type Appender struct {
	svc           *gsheets.Service
	spreadsheetID string
	rng           string
}

// NewAppender creates a Sheets client for spreadsheetID. rng is the A1 range
// rows are appended to, e.g. "Sheet1!A2".
func NewAppender(ctx context.Context, spreadsheetID, rng string, opts ...option.ClientOption) (*Appender, error) {
	if spreadsheetID == "" {
		return nil, eris.New("sheets: spreadsheet id is required")
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create service")
	}
	return &Appender{svc: svc, spreadsheetID: spreadsheetID, rng: rng}, nil
}

// Append adds one row per business.
func (a *Appender) Append(ctx context.Context, items []model.Business) error {
	if len(items) == 0 {
		return nil
	}
	values := make([][]any, len(items))
	for i, b := range items {
		values[i] = Row(b)
	}
	_, err := a.svc.Spreadsheets.Values.
		Append(a.spreadsheetID, a.rng, &gsheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return eris.Wrapf(err, "sheets: append %d rows", len(items))
	}
	return nil
}

// Row is the sheet layout: name, address, phone, website, rating, rating
// count, price level, open status. Missing values read "N/A".
func Row(b model.Business) []any {
	open := "Closed"
	if b.OpenNow != nil && *b.OpenNow {
		open = "Open"
	}
	return []any{
		b.Name,
		b.Address,
		orNA(b.Phone),
		orNA(b.Website),
		floatOrNA(b.Rating),
		intOrNA(b.RatingCount),
		intOrNA(b.PriceLevel),
		open,
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func floatOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intOrNA(v *int) string {
	if v == nil {
		return "N/A"
	}
	return strconv.Itoa(*v)
}
