package receipt

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirDownloader implements Downloader by writing exports into a local directory
type DirDownloader struct {
	basePath string
}

// NewDirDownloader creates a DirDownloader, creating the directory if needed
func NewDirDownloader(basePath string) (*DirDownloader, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}

	return &DirDownloader{
		basePath: basePath,
	}, nil
}

// TriggerDownload writes data to filename inside the download directory
func (d *DirDownloader) TriggerDownload(data []byte, filename string) error {
	path := filepath.Join(d.basePath, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// Path returns the full path a download named filename is written to
func (d *DirDownloader) Path(filename string) string {
	return filepath.Join(d.basePath, filepath.Base(filename))
}
