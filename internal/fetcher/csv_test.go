package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(recCh <-chan Record, errCh <-chan error) ([]Record, error) {
	var recs []Record
	for r := range recCh {
		recs = append(recs, r)
	}
	return recs, <-errCh
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "name,gps_code\nAlpha,AAAA\nBravo,BBBB\n"
	recs, err := collect(StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{}))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"name", "gps_code"}, recs[0].Fields)
	assert.Equal(t, Record{Line: 3, Fields: []string{"Bravo", "BBBB"}}, recs[2])
}

func TestStreamCSV_MultilineFieldKeepsStartLine(t *testing.T) {
	input := "a,b\n\"multi\nline\",x\nlast,y\n"
	recs, err := collect(StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{}))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 2, recs[1].Line)
	assert.Equal(t, "multi\nline", recs[1].Fields[0])
	assert.Equal(t, 4, recs[2].Line)
}

func TestStreamCSV_Options(t *testing.T) {
	input := "# comment\n a | b \n1|\"x \"y\"|3\n"
	recs, err := collect(StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Comma:      '|',
		Comment:    '#',
		LazyQuotes: true,
		TrimSpace:  true,
	}))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"a", "b"}, recs[0].Fields)
	assert.Len(t, recs[1].Fields, 3)
}

func TestStreamCSV_VariableFieldCount(t *testing.T) {
	recs, err := collect(StreamCSV(context.Background(), strings.NewReader("a,b,c\n1\n"), CSVOptions{}))
	require.NoError(t, err)
	assert.Len(t, recs[1].Fields, 1)
}

func TestStreamCSV_ParseError(t *testing.T) {
	_, err := collect(StreamCSV(context.Background(), strings.NewReader("a,\"b\n"), CSVOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_Empty(t *testing.T) {
	recs, err := collect(StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{}))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recs, err := collect(StreamCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{}))
	assert.Empty(t, recs)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
