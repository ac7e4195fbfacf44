package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/storeline/siteval-cli/internal/service"
)

var (
	predictFile string
	predictJSON string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict yearly revenue for a single site",
	Long: `Reads one JSON request describing a candidate site and prints the
prediction as indented JSON.

The request body comes from --json, from --file, or from stdin when
neither flag is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		raw, err := readRequestBody(predictFile, predictJSON, cmd.InOrStdin())
		if err != nil {
			return err
		}

		svc, err := service.Load(ctx, cfg)
		if err != nil {
			return err
		}

		resp, err := svc.Handle(raw)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

// readRequestBody resolves the request source. Inline JSON wins over --file,
// and stdin is the fallback when neither is given.
func readRequestBody(file, inline string, stdin io.Reader) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, eris.Wrap(err, "predict: read request file")
		}
		return raw, nil
	default:
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, eris.Wrap(err, "predict: read stdin")
		}
		return raw, nil
	}
}

func init() {
	predictCmd.Flags().StringVar(&predictFile, "file", "", "path to a request JSON file")
	predictCmd.Flags().StringVar(&predictJSON, "json", "", "inline request JSON")
	rootCmd.AddCommand(predictCmd)
}
