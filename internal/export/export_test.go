package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/places-catalog/internal/model"
)

func sample() []model.Business {
	rating := 4.5
	count := 12
	open := true
	owner := "u1"
	return []model.Business{
		{
			ID:          "internal-1",
			PlaceID:     "p1",
			Name:        "Blue Bottle",
			Address:     "1 Main St",
			Phone:       "555-0100",
			Website:     "https://bb.example",
			Rating:      &rating,
			RatingCount: &count,
			OpenNow:     &open,
			Icon:        "https://icon.example/cafe.png",
			Types:       []string{"cafe", "food"},
			Location:    &model.Location{Lat: 37.5, Lng: -122.25},
			Raw:         []byte(`{"secret":"raw"}`),
			OwnerID:     &owner,
			CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{PlaceID: "p2", Name: "No Details"},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	assert.Equal(t, "businesses.xlsx", f.Filename())

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	assert.Equal(t, "place_id", header[0])
	assert.NotContains(t, header, "id")
	assert.NotContains(t, header, "raw")
	assert.NotContains(t, header, "icon")
	assert.NotContains(t, header, "owner_id")

	col := map[string]int{}
	for i, h := range header {
		col[h] = i
	}
	first := records[1]
	assert.Equal(t, "Blue Bottle", first[col["name"]])
	assert.Equal(t, "4.5", first[col["rating"]])
	assert.Equal(t, "12", first[col["user_ratings_total"]])
	assert.Equal(t, "true", first[col["open_now"]])
	assert.Equal(t, "cafe;food", first[col["types"]])
	assert.Equal(t, "37.5", first[col["lat"]])
	assert.Equal(t, "2024-01-02T03:04:05Z", first[col["created_at"]])
	assert.NotContains(t, buf.String(), "secret")

	second := records[2]
	assert.Equal(t, "", second[col["rating"]])
	assert.Equal(t, "", second[col["price_level"]])
}

func TestWriteCSV_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "place_id", records[0][0])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sample()))

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	sheet := file.Sheets[0]
	assert.Equal(t, "Businesses", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "place_id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "p1", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Blue Bottle", sheet.Rows[1].Cells[1].String())
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Format("pdf"), nil))
}

func TestParseGCS(t *testing.T) {
	loc, ok, err := ParseGCS("gs://exports/daily/businesses.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, GCSLocation{Bucket: "exports", Object: "daily/businesses.csv"}, loc)

	_, ok, err = ParseGCS("/tmp/businesses.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, bad := range []string{"gs://", "gs://bucket", "gs://bucket/", "gs://bucket/dir/"} {
		_, ok, err = ParseGCS(bad)
		assert.True(t, ok, bad)
		assert.Error(t, err, bad)
	}
}

func TestOpen_LocalFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.csv")
	w, err := Open(context.Background(), nil, dst, FormatCSV)
	require.NoError(t, err)
	require.NoError(t, WriteCSV(w, sample()))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Blue Bottle")
}

func TestOpen_GCSWithoutClient(t *testing.T) {
	_, err := Open(context.Background(), nil, "gs://bucket/object.csv", FormatCSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage client")
}
