package source

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

type countingSource struct {
	name  string
	calls atomic.Int32
	err   error
}

func (s *countingSource) Name() string { return s.name }

func (s *countingSource) Load(ctx context.Context) (*sheet.Dataset, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &sheet.Dataset{Source: s.name}, nil
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Dashboard_Master_DE_v2.xlsx")
	require.NoError(t, os.WriteFile(path, testutil.SampleWorkbook(t), 0o600))

	ds, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Machines, 6)
	assert.Equal(t, "Dashboard_Master_DE_v2.xlsx", ds.Source)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.xlsx")}.Load(context.Background())
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestUploadSource(t *testing.T) {
	ds, err := UploadSource{Filename: "upload.xlsx", Data: testutil.SampleWorkbook(t)}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "upload.xlsx", ds.Source)
	assert.Equal(t, []string{"Jan 25", "Feb 25", "Mar 25"}, ds.Months)

	_, err = UploadSource{Filename: "empty.xlsx"}.Load(context.Background())
	assert.ErrorIs(t, err, sheet.ErrEmptySheet)

	_, err = UploadSource{Filename: "notes.txt", Data: []byte("x")}.Load(context.Background())
	assert.ErrorIs(t, err, sheet.ErrUnsupportedFormat)
}

func TestFallbackSource(t *testing.T) {
	primary := &countingSource{name: "drive:abc", err: errors.New("offline")}
	fallback := &countingSource{name: "file:local.xlsx"}

	ds, err := FallbackSource{Primary: primary, Fallback: fallback}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file:local.xlsx", ds.Source)

	fallback.err = errors.New("missing")
	_, err = FallbackSource{Primary: primary, Fallback: fallback}.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
	assert.Contains(t, err.Error(), "missing")

	_, err = FallbackSource{Primary: primary}.Load(context.Background())
	assert.EqualError(t, err, "offline")
}

func TestCache(t *testing.T) {
	src := &countingSource{name: "file:a.xlsx"}
	c := NewCache(time.Minute, nil)

	for i := 0; i < 3; i++ {
		_, err := c.Load(context.Background(), src)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 1, c.Len())

	c.Reload()
	assert.Equal(t, 0, c.Len())
	_, err := c.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())

	failing := &countingSource{name: "file:b.xlsx", err: errors.New("boom")}
	_, err = c.Load(context.Background(), failing)
	assert.Error(t, err)
	assert.Equal(t, 1, c.Len(), "failures are not cached")
}

func TestCacheSkipsFallbackResult(t *testing.T) {
	primary := &countingSource{name: "drive:abc", err: errors.New("offline")}
	fallback := &countingSource{name: "file:local.xlsx"}
	src := FallbackSource{Primary: primary, Fallback: fallback}
	c := NewCache(time.Minute, nil)

	ds, err := c.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "file:local.xlsx", ds.Source)
	assert.Equal(t, 0, c.Len(), "fallback data is not stored under the primary name")

	primary.err = nil
	ds, err = c.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "drive:abc", ds.Source)
	assert.Equal(t, 1, c.Len())

	_, err = c.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int32(2), primary.calls.Load())
	assert.Equal(t, int32(1), fallback.calls.Load())
}

func TestDriveSource(t *testing.T) {
	workbook := testutil.SampleWorkbook(t)

	tests := []struct {
		name       string
		mimeType   string
		fileName   string
		wantSource string
		wantPath   string
	}{
		{"native google sheet is exported", "application/vnd.google-apps.spreadsheet", "Dashboard Master", "Dashboard Master.xlsx", "/export"},
		{"stored xlsx is downloaded", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "Dashboard_Master_DE_v2.xlsx", "Dashboard_Master_DE_v2.xlsx", "alt=media"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var contentRequest string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
				switch {
				case strings.HasSuffix(r.URL.Path, "/export"):
					contentRequest = "/export"
					_, _ = w.Write(workbook)
				case r.URL.Query().Get("alt") == "media":
					contentRequest = "alt=media"
					_, _ = w.Write(workbook)
				default:
					w.Header().Set("Content-Type", "application/json")
					_ = json.NewEncoder(w).Encode(map[string]string{"name": tt.fileName, "mimeType": tt.mimeType, "size": "1"})
				}
			}))
			defer srv.Close()

			src := DriveSource{
				FileID:      "file-1",
				TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token", TokenType: "Bearer"}),
				Options:     []option.ClientOption{option.WithEndpoint(srv.URL + "/")},
			}
			ds, err := src.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, ds.Source)
			assert.Equal(t, tt.wantPath, contentRequest)
			assert.Len(t, ds.Machines, 6)
		})
	}
}

func TestDriveSourceRequiresLogin(t *testing.T) {
	_, err := DriveSource{FileID: "x"}.Load(context.Background())
	assert.Error(t, err)

	_, err = DriveSource{}.Load(context.Background())
	assert.Error(t, err)
}
