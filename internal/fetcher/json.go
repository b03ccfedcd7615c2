package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}

// DecodeTable decodes a header-first JSON table of the form
// [["COL_A","COL_B"],["1","2"],...] into one map per data row.
// Null cells decode as empty strings.
func DecodeTable(r io.Reader) ([]map[string]string, error) {
	var raw [][]*string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "json: decode table")
	}
	if len(raw) == 0 {
		return nil, eris.New("json: table has no header row")
	}

	header := make([]string, len(raw[0]))
	for i, cell := range raw[0] {
		if cell == nil {
			return nil, eris.Errorf("json: null header cell at column %d", i)
		}
		header[i] = *cell
	}

	rows := make([]map[string]string, 0, len(raw)-1)
	for n, cells := range raw[1:] {
		if len(cells) != len(header) {
			return nil, eris.Errorf("json: row %d has %d cells, header has %d", n+1, len(cells), len(header))
		}
		row := make(map[string]string, len(header))
		for i, cell := range cells {
			if cell != nil {
				row[header[i]] = *cell
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
