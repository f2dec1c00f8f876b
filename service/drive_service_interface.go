package service

import "context"

// DriveDownloader downloads file contents from Google Drive
type DriveDownloader interface {
	DownloadImage(ctx context.Context, fileID string) ([]byte, error)
}
