package release

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liiesl/EasyScanlate/pkg/config"
	"github.com/Liiesl/EasyScanlate/pkg/display"
	"github.com/Liiesl/EasyScanlate/pkg/downloader"
)

// recordingDownloader serves a fixed body and remembers the requested URIs.
type recordingDownloader struct {
	body string
	uris []string
}

func (d *recordingDownloader) Download(ctx context.Context, uri string, w io.Writer, task display.Task) error {
	d.uris = append(d.uris, uri)
	_, err := io.WriteString(w, d.body)
	return err
}

func (d *recordingDownloader) Fetch(ctx context.Context, uri, destPath string, task display.Task) (*downloader.Transaction, error) {
	panic("not used")
}

const latestJSON = `{
  "tag_name": "v1.4.0",
  "assets": [
    {"name": "notes.txt", "browser_download_url": "https://example.test/notes.txt"},
    {"name": "dependency-dll.7z", "browser_download_url": "https://example.test/v1.4.0/dependency-dll.7z"}
  ]
}`

func serve(t *testing.T, status int, body string) (*httptest.Server, *int) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/repos/Liiesl/ManhwaOCR/releases/latest", r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func remote(api string) config.RemoteSettings {
	r := config.Defaults(config.OSLinux).Remote
	r.APIBaseURL = api
	r.AssetName = "dependency-dll.7z"
	return r
}

func TestLatest(t *testing.T) {
	ts, _ := serve(t, http.StatusOK, latestJSON)

	rel, err := NewResolver(remote(ts.URL), nil).Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.4.0", rel.Tag)
	require.NotNil(t, rel.Version)
	assert.Equal(t, "1.4.0", rel.Version.String())
	assert.Equal(t, "https://example.test/v1.4.0/dependency-dll.7z", rel.AssetURL)
}

func TestLatestBadStatus(t *testing.T) {
	ts, _ := serve(t, http.StatusForbidden, `{"message":"rate limited"}`)
	_, err := NewResolver(remote(ts.URL), nil).Latest(context.Background())
	assert.ErrorContains(t, err, "403")

	var herr *downloader.HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusForbidden, herr.StatusCode)
}

func TestLatestUsesDownloader(t *testing.T) {
	dl := &recordingDownloader{body: latestJSON}

	rel, err := NewResolver(remote("https://api.example.test/"), dl).Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.4.0", rel.Tag)
	assert.Equal(t, []string{"https://api.example.test/repos/Liiesl/ManhwaOCR/releases/latest"}, dl.uris)
}

func TestLatestNoTag(t *testing.T) {
	ts, _ := serve(t, http.StatusOK, `{}`)
	_, err := NewResolver(remote(ts.URL), nil).Latest(context.Background())
	assert.Error(t, err)
}

func TestArchiveURLFixedTag(t *testing.T) {
	ts, hits := serve(t, http.StatusOK, latestJSON)
	r := remote(ts.URL)
	r.ReleaseTag = "v1.0.0"

	u, err := NewResolver(r, nil).ArchiveURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/Liiesl/ManhwaOCR/releases/download/v1.0.0/dependency-dll.7z", u)
	assert.Zero(t, *hits)
}

func TestArchiveURLLatest(t *testing.T) {
	ts, hits := serve(t, http.StatusOK, latestJSON)

	u, err := NewResolver(remote(ts.URL), nil).ArchiveURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/v1.4.0/dependency-dll.7z", u)
	assert.Equal(t, 1, *hits)
}

func TestArchiveURLLatestWithoutAsset(t *testing.T) {
	ts, _ := serve(t, http.StatusOK, `{"tag_name": "v2.0.0", "assets": []}`)

	u, err := NewResolver(remote(ts.URL), nil).ArchiveURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/Liiesl/ManhwaOCR/releases/download/v2.0.0/dependency-dll.7z", u)
}

func TestCheckUpdate(t *testing.T) {
	latest := &Release{Tag: "v1.4.0", Version: ParseVersion("v1.4.0")}

	assert.Equal(t, StatusNotInstalled, CheckUpdate("", latest))
	assert.Equal(t, StatusUpdateAvailable, CheckUpdate("1.3.9", latest))
	assert.Equal(t, StatusUpToDate, CheckUpdate("v1.4.0", latest))
	assert.Equal(t, StatusUpToDate, CheckUpdate("1.5.0", latest))

	nightly := &Release{Tag: "nightly"}
	assert.Equal(t, StatusUpToDate, CheckUpdate("nightly", nightly))
	assert.Equal(t, StatusUnknown, CheckUpdate("1.0.0", nightly))
}

func TestIsDowngrade(t *testing.T) {
	assert.True(t, IsDowngrade("1.4.0", "1.3.0"))
	assert.False(t, IsDowngrade("1.4.0", "1.4.0"))
	assert.False(t, IsDowngrade("dev", "1.0.0"))
}
