package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/storeline/siteval-cli/internal/fetcher"
	"github.com/storeline/siteval-cli/internal/respond"
	"github.com/storeline/siteval-cli/internal/service"
)

var (
	batchOut   string
	batchSheet string
	batchLimit int
)

// batchError is the output entry for a row that failed validation or
// prediction.
type batchError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Predict revenue for every site in a CSV, XLSX, or NDJSON file",
	Long: `Builds one request per data row and processes them in order. CSV and XLSX
files need a header row naming the request fields; cells stay strings and
are coerced during request validation. NDJSON files carry one request
object per line.

Results are written as NDJSON to stdout or to --output, one line per
input row in input order. Rows that fail validation or prediction are
logged and produce an error entry instead of a result; the batch keeps
going.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "batch"))

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		svc, err := service.Load(ctx, cfg)
		if err != nil {
			return err
		}

		bodies, err := readBatchBodies(ctx, args[0], batchSheet)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(bodies) > batchLimit {
			bodies = bodies[:batchLimit]
		}

		log.Info("batch: processing requests",
			zap.String("file", args[0]),
			zap.Int("requests", len(bodies)))

		out := os.Stdout
		if batchOut != "" {
			f, err := os.Create(batchOut)
			if err != nil {
				return eris.Wrap(err, "batch: create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		// One line per input row, in input order. Failed rows become error
		// entries so the output stays aligned with the input.
		var succeeded, failed int
		var totalRevenue float64
		enc := json.NewEncoder(out)
		for i, raw := range bodies {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "batch: interrupted")
			}

			resp, err := svc.Handle(raw)
			if err != nil {
				failed++
				log.Error("batch: request failed", zap.Int("row", i+1), zap.Error(err))
				if err := enc.Encode(batchError{Row: i + 1, Error: err.Error()}); err != nil {
					return eris.Wrap(err, "batch: write result")
				}
				continue
			}
			if err := enc.Encode(resp); err != nil {
				return eris.Wrap(err, "batch: write result")
			}
			succeeded++
			totalRevenue += resp.PredictedRevenue
		}

		log.Info("batch: complete",
			zap.Int("succeeded", succeeded),
			zap.Int("failed", failed),
			zap.String("total_predicted_revenue", respond.FormatRevenue(totalRevenue)))
		return nil
	},
}

// readBatchBodies loads request bodies from path, dispatching on extension.
func readBatchBodies(ctx context.Context, path, sheet string) ([][]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return csvBodies(ctx, path)
	case ".xlsx":
		return xlsxBodies(path, sheet)
	case ".ndjson", ".jsonl":
		return ndjsonBodies(path)
	default:
		return nil, eris.Errorf("batch: unsupported input format %q", filepath.Ext(path))
	}
}

func csvBodies(ctx context.Context, path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open input")
	}
	defer f.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var bodies [][]byte
	var header []string
	for row := range rowCh {
		if header == nil {
			header = <-headerCh
		}
		body, err := rowToBody(header, row)
		if err != nil {
			return nil, eris.Wrap(err, "batch: build request")
		}
		bodies = append(bodies, body)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	return bodies, nil
}

func xlsxBodies(path, sheet string) ([][]byte, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: sheet})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.New("batch: input sheet is empty")
	}

	header := rows[0]
	bodies := make([][]byte, 0, len(rows)-1)
	for _, row := range rows[1:] {
		body, err := rowToBody(header, row)
		if err != nil {
			return nil, eris.Wrap(err, "batch: build request")
		}
		bodies = append(bodies, body)
	}
	return bodies, nil
}

func ndjsonBodies(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open input")
	}
	defer f.Close() //nolint:errcheck

	var bodies [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		bodies = append(bodies, append([]byte(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "batch: read input")
	}
	return bodies, nil
}

// rowToBody pairs header names with row cells and marshals the pair set as a
// JSON object. Cells stay strings; request validation does the coercion.
// Empty cells are dropped so missing values surface as missing fields.
func rowToBody(header, row []string) ([]byte, error) {
	if len(row) > len(header) {
		return nil, eris.Errorf("row has %d cells for %d header columns", len(row), len(header))
	}
	obj := make(map[string]string, len(header))
	for i, cell := range row {
		if header[i] == "" || cell == "" {
			continue
		}
		obj[header[i]] = cell
	}
	return json.Marshal(obj)
}

func init() {
	batchCmd.Flags().StringVar(&batchOut, "output", "", "write results to this file instead of stdout")
	batchCmd.Flags().StringVar(&batchSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "process at most this many rows (0 = all)")
	rootCmd.AddCommand(batchCmd)
}
