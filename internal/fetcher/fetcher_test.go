package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForURL_HTTP(t *testing.T) {
	f, err := ForURL("https://www2.census.gov/geo/tiger/TIGER2024/TRACT/tl_2024_12_tract.zip", HTTPOptions{})
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)
}

func TestForURL_FTP(t *testing.T) {
	f, err := ForURL("ftp://ftp2.census.gov/geo/tiger/TIGER2024/TRACT/tl_2024_12_tract.zip", HTTPOptions{})
	require.NoError(t, err)
	assert.IsType(t, &FTPFetcher{}, f)
}

func TestForURL_UnsupportedScheme(t *testing.T) {
	_, err := ForURL("s3://bucket/tracts.zip", HTTPOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestForURL_InvalidURL(t *testing.T) {
	_, err := ForURL("://bad", HTTPOptions{})
	require.Error(t, err)
}
