// Package export renders the business catalog as CSV or XLSX and writes it
// to a local file or a gs:// object.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/places-catalog/internal/model"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" (the default for "") and "xlsx".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unsupported format %q", s)
	}
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Filename is the attachment name for the format.
func (f Format) Filename() string {
	return "businesses." + string(f)
}

// Row is one exported business. Internal fields (id, raw, icon, owner_id)
// are left out.
type Row struct {
	PlaceID     string   `csv:"place_id"`
	Name        string   `csv:"name"`
	Address     string   `csv:"formatted_address"`
	Phone       string   `csv:"formatted_phone_number"`
	Website     string   `csv:"website"`
	Rating      *float64 `csv:"rating,omitempty"`
	RatingCount *int     `csv:"user_ratings_total,omitempty"`
	PriceLevel  *int     `csv:"price_level,omitempty"`
	OpenNow     *bool    `csv:"open_now,omitempty"`
	Types       string   `csv:"types"`
	Lat         *float64 `csv:"lat,omitempty"`
	Lng         *float64 `csv:"lng,omitempty"`
	CreatedAt   string   `csv:"created_at"`
	UpdatedAt   string   `csv:"updated_at"`
}

// Rows converts businesses to export rows.
func Rows(items []model.Business) []Row {
	rows := make([]Row, len(items))
	for i, b := range items {
		r := Row{
			PlaceID:     b.PlaceID,
			Name:        b.Name,
			Address:     b.Address,
			Phone:       b.Phone,
			Website:     b.Website,
			Rating:      b.Rating,
			RatingCount: b.RatingCount,
			PriceLevel:  b.PriceLevel,
			OpenNow:     b.OpenNow,
			Types:       strings.Join(b.Types, ";"),
			CreatedAt:   formatTime(b.CreatedAt),
			UpdatedAt:   formatTime(b.UpdatedAt),
		}
		if b.Location != nil {
			lat, lng := b.Location.Lat, b.Location.Lng
			r.Lat, r.Lng = &lat, &lng
		}
		rows[i] = r
	}
	return rows
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Write renders items to w in format f.
func Write(w io.Writer, f Format, items []model.Business) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, items)
	case FormatXLSX:
		return WriteXLSX(w, items)
	default:
		return eris.Errorf("export: unsupported format %q", f)
	}
}

// WriteCSV writes a header row and one row per business. An empty catalog
// still gets the header.
func WriteCSV(w io.Writer, items []model.Business) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	rows := Rows(items)
	var err error
	if len(rows) == 0 {
		err = enc.EncodeHeader(Row{})
	} else {
		err = enc.Encode(rows)
	}
	if err != nil {
		return eris.Wrap(err, "export: encode csv")
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes a single "Businesses" sheet with the CSV columns.
func WriteXLSX(w io.Writer, items []model.Business) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Businesses")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header, err := csvutil.Header(Row{}, "csv")
	if err != nil {
		return eris.Wrap(err, "export: header")
	}
	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}

	for _, r := range Rows(items) {
		xr := sheet.AddRow()
		xr.AddCell().SetString(r.PlaceID)
		xr.AddCell().SetString(r.Name)
		xr.AddCell().SetString(r.Address)
		xr.AddCell().SetString(r.Phone)
		xr.AddCell().SetString(r.Website)
		setFloat(xr.AddCell(), r.Rating)
		setInt(xr.AddCell(), r.RatingCount)
		setInt(xr.AddCell(), r.PriceLevel)
		setBool(xr.AddCell(), r.OpenNow)
		xr.AddCell().SetString(r.Types)
		setFloat(xr.AddCell(), r.Lat)
		setFloat(xr.AddCell(), r.Lng)
		xr.AddCell().SetString(r.CreatedAt)
		xr.AddCell().SetString(r.UpdatedAt)
	}

	return eris.Wrap(file.Write(w), "export: write xlsx")
}

func setFloat(c *xlsx.Cell, v *float64) {
	if v != nil {
		c.SetFloat(*v)
	}
}

func setInt(c *xlsx.Cell, v *int) {
	if v != nil {
		c.SetInt(*v)
	}
}

func setBool(c *xlsx.Cell, v *bool) {
	if v != nil {
		c.SetString(strconv.FormatBool(*v))
	}
}
