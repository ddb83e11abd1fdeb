package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/agrof66/machine-dashboard/internal/sheet"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	mimeGoogleSheet = "application/vnd.google-apps.spreadsheet"
	mimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxDriveFileBytes = 64 << 20
)

// DriveSource downloads a workbook from Google Drive with the user's token.
type DriveSource struct {
	FileID      string
	TokenSource oauth2.TokenSource
	// Options are passed to the Drive client after the token source.
	Options []option.ClientOption
}

// Name implements Source.
func (s DriveSource) Name() string {
	return "drive:" + s.FileID
}

// Load implements Source. Native Google Sheets are exported as xlsx, other
// files are downloaded as stored.
func (s DriveSource) Load(ctx context.Context) (*sheet.Dataset, error) {
	if s.FileID == "" {
		return nil, errors.New("no drive file id configured")
	}
	if s.TokenSource == nil {
		return nil, errors.New("drive access requires a google login")
	}

	opts := append([]option.ClientOption{option.WithTokenSource(s.TokenSource)}, s.Options...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}

	meta, err := svc.Files.Get(s.FileID).Fields("name", "mimeType", "size").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read drive metadata: %w", err)
	}

	name := meta.Name
	var body io.ReadCloser
	if meta.MimeType == mimeGoogleSheet {
		resp, err := svc.Files.Export(s.FileID, mimeXLSX).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("failed to export google sheet: %w", err)
		}
		body = resp.Body
		if filepath.Ext(name) == "" {
			name += ".xlsx"
		}
	} else {
		resp, err := svc.Files.Get(s.FileID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("failed to download drive file: %w", err)
		}
		body = resp.Body
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(io.LimitReader(body, maxDriveFileBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read drive file: %w", err)
	}

	ds, err := sheet.Parse(data, name)
	if err != nil {
		return nil, err
	}
	ds.Source = name
	return ds, nil
}
