package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

type sheetData struct {
	name string
	rows [][]string
}

func createTestXLSX(t *testing.T, sheets ...sheetData) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.name)
		require.NoError(t, err)
		for _, cells := range s.rows {
			row := sheet.AddRow()
			for _, v := range cells {
				row.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "requests.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, sheetData{
		name: "Sheet1",
		rows: [][]string{
			{"Latitude", "Longitude", "NeighborsToUse"},
			{"25.77", "-80.19", "4"},
			{"28.54", "-81.38", "3"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Latitude", "Longitude", "NeighborsToUse"}, rows[0])
	assert.Equal(t, []string{"25.77", "-80.19", "4"}, rows[1])
	assert.Equal(t, []string{"28.54", "-81.38", "3"}, rows[2])
}

func TestReadXLSX_SheetByName(t *testing.T) {
	path := createTestXLSX(t,
		sheetData{name: "Notes", rows: [][]string{{"ignore me"}}},
		sheetData{name: "Requests", rows: [][]string{
			{"Latitude", "Longitude"},
			{"25.77", "-80.19"},
		}},
	)

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Requests"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"25.77", "-80.19"}, rows[1])
}

func TestReadXLSX_SheetByIndex(t *testing.T) {
	path := createTestXLSX(t,
		sheetData{name: "Notes", rows: [][]string{{"ignore me"}}},
		sheetData{name: "Requests", rows: [][]string{{"Latitude"}}},
	)

	rows, err := ReadXLSX(path, XLSXOptions{SheetIndex: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Latitude"}, rows[0])
}

func TestReadXLSX_SheetNameNotFound(t *testing.T) {
	path := createTestXLSX(t, sheetData{name: "Sheet1", rows: [][]string{{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, sheetData{name: "Sheet1", rows: [][]string{{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}

func TestReadXLSX_RaggedRows(t *testing.T) {
	path := createTestXLSX(t, sheetData{
		name: "Sheet1",
		rows: [][]string{
			{"a", "b", "c"},
			{"1"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 3)
	assert.Len(t, rows[1], 1)
}
