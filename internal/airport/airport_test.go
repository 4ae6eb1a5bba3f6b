package airport

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `"id","ident","type","name","latitude_deg","longitude_deg","iso_country","gps_code"
1,"LFPG","large_airport","Charles de Gaulle",49.0128,2.55,"FR","LFPG"
2,"EGLL","large_airport","Heathrow",51.4706,-0.461941,"GB","EGLL"
3,"X1","heliport","O` + "`" + `Hare Pad",41.97,-87.9,"US","00AA"
`

func TestLoad(t *testing.T) {
	got, err := Load(context.Background(), strings.NewReader(sampleCSV), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Airport{
		Name:         "Charles de Gaulle",
		LatitudeDeg:  49.0128,
		LongitudeDeg: 2.55,
		GPSCode:      "LFPG",
		ISOCountry:   "FR",
	}, got[0])
	assert.Equal(t, "O'Hare Pad", got[2].Name)
}

func TestLoad_MissingColumn(t *testing.T) {
	_, err := Load(context.Background(), strings.NewReader("name,latitude_deg\nA,1\n"), LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "longitude_deg"`)
}

func TestLoad_BadCoordinateReportsLine(t *testing.T) {
	input := "name,latitude_deg,longitude_deg,gps_code,iso_country\nA,1,2,AAAA,FR\nB,north,2,BBBB,FR\n"
	_, err := Load(context.Background(), strings.NewReader(input), LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestLoad_Charset(t *testing.T) {
	// "Zürich" in windows-1252.
	input := []byte("name,latitude_deg,longitude_deg,gps_code,iso_country\nZ\xfcrich,47.46,8.55,LSZH,CH\n")

	got, err := Load(context.Background(), bytes.NewReader(input), LoadOptions{Charset: "windows-1252"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Zürich", got[0].Name)

	_, err = Load(context.Background(), bytes.NewReader(input), LoadOptions{Charset: "klingon"})
	require.Error(t, err)
}

func TestLoad_HeaderOnly(t *testing.T) {
	got, err := Load(context.Background(), strings.NewReader(strings.Join(Headers, ",")+"\n"), LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), LoadOptions{})
	require.Error(t, err)
}

func TestPoints(t *testing.T) {
	pts := Points([]Airport{{GPSCode: "LFPG", LatitudeDeg: 49, LongitudeDeg: 2.5}})
	require.Len(t, pts, 1)
	assert.Equal(t, "LFPG", pts[0].ID)
	assert.Equal(t, 49.0, pts[0].Latitude)
	assert.Equal(t, 2.5, pts[0].Longitude)
}

func TestFilterICAO(t *testing.T) {
	in := []Airport{
		{Name: "first", GPSCode: "LFPG", ISOCountry: "FR"},
		{Name: "short", GPSCode: "LFP", ISOCountry: "FR"},
		{Name: "lower", GPSCode: "lfpo", ISOCountry: "FR"},
		{Name: "stateless", GPSCode: "ZZZZ"},
		{Name: "heathrow", GPSCode: "EGLL", ISOCountry: "GB"},
		{Name: "second", GPSCode: "LFPG", ISOCountry: "FR"},
	}

	got, err := FilterICAO(in, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Name, "later duplicate replaces earlier in place")
	assert.Equal(t, "EGLL", got[1].GPSCode)
}

func TestFilterICAO_BadPattern(t *testing.T) {
	_, err := FilterICAO(nil, "[")
	require.Error(t, err)
}

func TestFindOutliers(t *testing.T) {
	in := []Airport{
		{GPSCode: "LFPG", LatitudeDeg: 49.01, LongitudeDeg: 2.55},
		{GPSCode: "LFPO", LatitudeDeg: 48.72, LongitudeDeg: 2.38},
		{GPSCode: "LPPS", LatitudeDeg: 33.07, LongitudeDeg: -16.35}, // Porto Santo, far from Paris
		{GPSCode: "KJFK", LatitudeDeg: 40.64, LongitudeDeg: -73.78}, // alone under K
	}

	out := FindOutliers(in, 1000)
	require.Len(t, out, 2)
	assert.Equal(t, "LPPS", out[0].Airport.GPSCode)
	assert.Equal(t, "LFPO", out[0].NearestTo)
	assert.Greater(t, out[0].NearestKm, 1000.0)
	assert.Equal(t, "KJFK", out[1].Airport.GPSCode)
	assert.Empty(t, out[1].NearestTo)

	kept := RemoveOutliers(in, out)
	require.Len(t, kept, 2)
	assert.Equal(t, "LFPG", kept[0].GPSCode)
	assert.Equal(t, "LFPO", kept[1].GPSCode)
}

func TestFindOutliers_ThresholdIsStrict(t *testing.T) {
	in := []Airport{
		{GPSCode: "AAAA", LatitudeDeg: 0, LongitudeDeg: 0},
		{GPSCode: "ABBB", LatitudeDeg: 1, LongitudeDeg: 0},
	}
	assert.Empty(t, FindOutliers(in, 200))
	assert.Len(t, FindOutliers(in, 100), 2)
}

func TestIndex(t *testing.T) {
	idx := NewIndex([]Airport{
		{GPSCode: "LFPO", Name: "Orly"},
		{GPSCode: "LFPG", Name: "CDG"},
		{GPSCode: "LEMD", Name: "Barajas"},
		{GPSCode: "EGLL", Name: "Heathrow"},
		{GPSCode: "LFPG", Name: "CDG 2"},
	})
	assert.Equal(t, 4, idx.Len())

	a, ok := idx.Get("LFPG")
	require.True(t, ok)
	assert.Equal(t, "CDG 2", a.Name)

	codes := func(as []Airport) []string {
		out := make([]string, len(as))
		for i, a := range as {
			out[i] = a.GPSCode
		}
		return out
	}
	assert.Equal(t, []string{"LEMD", "LFPG", "LFPO"}, codes(idx.ByPrefix("L")))
	assert.Equal(t, []string{"LFPG", "LFPO"}, codes(idx.ByPrefix("LFP")))
	assert.Equal(t, []string{"LFPO"}, codes(idx.ByPrefix("LFPO")))
	assert.Empty(t, idx.ByPrefix("Q"))
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	in := []Airport{
		{Name: "Charles de Gaulle", LatitudeDeg: 49.0128, LongitudeDeg: 2.55, GPSCode: "LFPG", ISOCountry: "FR"},
		{Name: "Comma, Field", LatitudeDeg: -1.5, LongitudeDeg: 100, GPSCode: "WXYZ", ISOCountry: "ID"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "name,latitude_deg,longitude_deg,gps_code,iso_country\n"))
	assert.Contains(t, buf.String(), "\"Comma, Field\",-1.5,100,WXYZ,ID\n")

	back, err := Load(context.Background(), &buf, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "airports.csv")
	require.NoError(t, WriteCSVFile(path, []Airport{{Name: "A", GPSCode: "AAAA", ISOCountry: "FR"}}))

	back, err := LoadFile(context.Background(), path, LoadOptions{})
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "AAAA", back[0].GPSCode)
}
