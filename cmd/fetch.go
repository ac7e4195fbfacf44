package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/storeline/siteval-cli/internal/census"
	"github.com/storeline/siteval-cli/internal/fetcher"
	"github.com/storeline/siteval-cli/internal/geometry"
)

var (
	fetchDir   string
	fetchCache string
	fetchAttrs string
	fetchCheck bool
	fetchState string
	fetchYear  int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Download a zipped shapefile and optionally build the sqlite cache",
	Long: `Downloads a zipped shapefile bundle over HTTP or FTP, extracts the .shp
and its sidecars into the data directory, and optionally loads it and
saves a sqlite cache for fast startup.

The archive comes from an explicit URL argument, or from --state (postal
abbreviation or FIPS code) and --year, which name the TIGER/Line census
tract archive for that state.

HTTP downloads store the response ETag next to the archive and send
If-None-Match on later runs, so an unchanged archive is not downloaded
twice. --check only reports whether the remote differs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		rawURL, err := resolveFetchURL(args, fetchState, fetchYear)
		if err != nil {
			return err
		}
		dir := fetchDir
		if dir == "" {
			dir = cfg.Fetch.DataDir
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "fetch: create data dir")
		}

		name, err := archiveName(rawURL)
		if err != nil {
			return err
		}
		archive := filepath.Join(dir, name)

		opts := fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
		}

		if fetchCheck {
			return checkRemote(ctx, rawURL, archive, opts)
		}

		changed, err := downloadArchive(ctx, rawURL, archive, opts)
		if err != nil {
			return err
		}
		if !changed {
			fmt.Println("Archive unchanged, reusing", archive)
		}

		shpPath, err := fetcher.ExtractShapefile(archive, dir)
		if err != nil {
			return err
		}
		fmt.Println("Extracted", shpPath)

		if fetchCache != "" {
			coll, err := geometry.Load(ctx, shpPath, geometry.LoadOptions{
				Attributes: splitAndTrim(fetchAttrs),
			})
			if err != nil {
				return err
			}
			if err := geometry.SaveSQLite(ctx, fetchCache, coll); err != nil {
				return err
			}
			fmt.Printf("Cached %d records to %s\n", coll.Len(), fetchCache)
		}
		return nil
	},
}

// resolveFetchURL picks the archive URL from the positional argument or
// builds the TIGER tract URL from --state and --year.
func resolveFetchURL(args []string, state string, year int) (string, error) {
	if len(args) == 1 {
		if state != "" {
			return "", eris.New("fetch: pass either a url or --state, not both")
		}
		return args[0], nil
	}
	if state == "" {
		return "", eris.New("fetch: need a url argument or --state")
	}
	fips, err := census.NormalizeState(state)
	if err != nil {
		return "", err
	}
	return census.TractURL(year, fips), nil
}

// archiveName derives the local file name from the URL path.
func archiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "fetch: parse url")
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", eris.Errorf("fetch: cannot derive archive name from %q", rawURL)
	}
	return name, nil
}

// downloadArchive fetches the URL into archivePath. HTTP fetches are
// conditional on the ETag stored by the previous run; FTP always fetches.
// Reports whether new bytes were written.
func downloadArchive(ctx context.Context, rawURL, archivePath string, opts fetcher.HTTPOptions) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, eris.Wrap(err, "fetch: parse url")
	}
	log := zap.L()

	if u.Scheme == "ftp" {
		f := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: opts.Timeout})
		n, err := f.DownloadToFile(ctx, rawURL, archivePath)
		if err != nil {
			return false, err
		}
		log.Info("fetch: downloaded", zap.String("url", rawURL), zap.Int64("bytes", n))
		return true, nil
	}

	f := fetcher.NewHTTPFetcher(opts)
	etag := readETag(archivePath)
	if _, err := os.Stat(archivePath); err != nil {
		// Archive is gone; a stale sidecar must not suppress the fetch.
		etag = ""
	}

	body, newETag, changed, err := f.DownloadIfChanged(ctx, rawURL, etag)
	if err != nil {
		return false, err
	}
	if !changed {
		log.Info("fetch: archive unchanged", zap.String("url", rawURL))
		return false, nil
	}
	defer body.Close() //nolint:errcheck

	out, err := os.Create(archivePath)
	if err != nil {
		return false, eris.Wrap(err, "fetch: create archive")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, body)
	if err != nil {
		return false, eris.Wrap(err, "fetch: write archive")
	}
	writeETag(archivePath, newETag)

	log.Info("fetch: downloaded", zap.String("url", rawURL), zap.Int64("bytes", n))
	return true, nil
}

// checkRemote compares the remote ETag against the stored sidecar without
// downloading the body.
func checkRemote(ctx context.Context, rawURL, archivePath string, opts fetcher.HTTPOptions) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrap(err, "fetch: parse url")
	}
	if u.Scheme == "ftp" {
		return eris.New("fetch: --check requires an http or https url")
	}

	f := fetcher.NewHTTPFetcher(opts)
	remote, err := f.HeadETag(ctx, rawURL)
	if err != nil {
		return err
	}

	stored := readETag(archivePath)
	switch {
	case remote == "":
		fmt.Println("Remote sends no ETag, cannot compare")
	case remote == stored:
		fmt.Println("Archive is up to date")
	default:
		fmt.Println("Remote archive differs, fetch will download")
	}
	return nil
}

func etagPath(archivePath string) string {
	return archivePath + ".etag"
}

func readETag(archivePath string) string {
	data, err := os.ReadFile(etagPath(archivePath))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func writeETag(archivePath, etag string) {
	if etag == "" {
		_ = os.Remove(etagPath(archivePath))
		return
	}
	if err := os.WriteFile(etagPath(archivePath), []byte(etag), 0o644); err != nil {
		zap.L().Warn("fetch: write etag sidecar", zap.Error(err))
	}
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDir, "dir", "", "download directory (default fetch.data_dir)")
	fetchCmd.Flags().StringVar(&fetchCache, "cache", "", "build a sqlite cache at this path after extraction")
	fetchCmd.Flags().StringVar(&fetchAttrs, "attrs", "", "comma-separated attribute columns to keep when caching")
	fetchCmd.Flags().BoolVar(&fetchCheck, "check", false, "only report whether the remote archive changed")
	fetchCmd.Flags().StringVar(&fetchState, "state", "", "build the TIGER tract URL for this state (abbreviation or FIPS)")
	fetchCmd.Flags().IntVar(&fetchYear, "year", 2024, "TIGER/Line vintage for --state")
	rootCmd.AddCommand(fetchCmd)
}
