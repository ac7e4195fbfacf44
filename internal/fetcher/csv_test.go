package fetcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_ParseOptions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  CSVOptions
		want  [][]string
	}{
		{
			name:  "comma default",
			input: "Latitude,Longitude\n25.77,-80.19\n",
			want:  [][]string{{"Latitude", "Longitude"}, {"25.77", "-80.19"}},
		},
		{
			name:  "pipe delimited",
			input: "25.77|-80.19|4\n28.54|-81.38|3\n",
			opts:  CSVOptions{Delimiter: '|'},
			want:  [][]string{{"25.77", "-80.19", "4"}, {"28.54", "-81.38", "3"}},
		},
		{
			name:  "trim space",
			input: " 25.77 , -80.19 \n",
			opts:  CSVOptions{TrimSpace: true},
			want:  [][]string{{"25.77", "-80.19"}},
		},
		{
			name:  "comment lines skipped",
			input: "# generated by siteval fetch\n25.77,-80.19\n# trailer\n28.54,-81.38\n",
			opts:  CSVOptions{Comment: '#'},
			want:  [][]string{{"25.77", "-80.19"}, {"28.54", "-81.38"}},
		},
		{
			name:  "lazy quotes",
			input: "1,\"main \"st\" site\",3\n",
			opts:  CSVOptions{LazyQuotes: true},
			want:  [][]string{{"1", `main "st" site`, "3"}},
		},
		{
			name:  "ragged rows allowed",
			input: "25.77,-80.19,4\n28.54\n",
			want:  [][]string{{"25.77", "-80.19", "4"}, {"28.54"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(tt.input), tt.opts)
			rows, err := collectRows(t, rowCh, errCh)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestStreamCSV_HeaderRouting(t *testing.T) {
	input := "Latitude,NeighborsToUse\n25.77,4\n28.54,3\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)

	assert.Equal(t, []string{"Latitude", "NeighborsToUse"}, <-headerCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"25.77", "4"}, rows[0])
	assert.Equal(t, []string{"28.54", "3"}, rows[1])
}

func TestStreamCSV_HeaderOnly(t *testing.T) {
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("Latitude,Longitude\n"), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, []string{"Latitude", "Longitude"}, <-headerCh)
}

func TestStreamCSV_HeaderDroppedWithoutChannel(t *testing.T) {
	input := "Latitude,Longitude\n25.77,-80.19\n"

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"25.77", "-80.19"}, rows[0])
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_EmptyWithHeader(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{HasHeader: true})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_MalformedRow(t *testing.T) {
	input := "a,b\n1,\"unclosed\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_MalformedHeader(t *testing.T) {
	input := "\"unclosed\n25.77,-80.19\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{HasHeader: true})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read header")
}

func TestStreamCSV_CancelMidStream(t *testing.T) {
	var sb strings.Builder
	for range 10000 {
		sb.WriteString("25.77,-80.19,4\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})

	seen := 0
	for range rowCh {
		seen++
		if seen >= 5 {
			cancel()
			break
		}
	}
	for range rowCh {
	}

	var gotErr error
	for err := range errCh {
		if err != nil {
			gotErr = err
		}
	}
	// The goroutine either noticed the cancellation or drained the input first.
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "csv: cancelled")
	}
}

func TestStreamCSV_ExpiredContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("25.77,-80.19\n"), CSVOptions{})

	for range rowCh {
	}
	var gotErr error
	for err := range errCh {
		if err != nil {
			gotErr = err
		}
	}
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "csv: cancelled")
	}
}
