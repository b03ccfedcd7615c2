package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSeries struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func TestDecodeJSONObject(t *testing.T) {
	obj, err := DecodeJSONObject[testSeries](strings.NewReader(`{"status":"REQUEST_SUCCEEDED","count":2}`))
	require.NoError(t, err)
	assert.Equal(t, "REQUEST_SUCCEEDED", obj.Status)
	assert.Equal(t, 2, obj.Count)
}

func TestDecodeJSONObject_Invalid(t *testing.T) {
	_, err := DecodeJSONObject[testSeries](strings.NewReader(`{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json: decode object")
}

func TestDecodeJSONObject_EmptyInput(t *testing.T) {
	_, err := DecodeJSONObject[testSeries](strings.NewReader(""))
	require.Error(t, err)
}

func TestDecodeTable(t *testing.T) {
	input := `[["B19013_001E","B23025_005E","zip code tabulation area"],
		["61234","1200","10001"],
		[null,"80","10002"]]`

	rows, err := DecodeTable(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "61234", rows[0]["B19013_001E"])
	assert.Equal(t, "10001", rows[0]["zip code tabulation area"])
	assert.Equal(t, "", rows[1]["B19013_001E"])
	assert.Equal(t, "80", rows[1]["B23025_005E"])
}

func TestDecodeTable_HeaderOnly(t *testing.T) {
	rows, err := DecodeTable(strings.NewReader(`[["EMP","ESTAB"]]`))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeTable_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty array", `[]`, "no header row"},
		{"not a table", `{"error":"unknown variable"}`, "json: decode table"},
		{"ragged row", `[["A","B"],["1"]]`, "row 1 has 1 cells"},
		{"null header", `[[null,"B"],["1","2"]]`, "null header cell"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTable(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
