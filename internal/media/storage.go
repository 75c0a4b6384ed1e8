package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// thumbnailTimeout bounds the external ffmpeg call; a hung extractor must
// not stall message delivery.
const thumbnailTimeout = 10 * time.Second

// Storage persists attachment bytes and extracts video thumbnails.
type Storage interface {
	WriteFile(data []byte, destPath string) error
	ExtractVideoThumbnail(ctx context.Context, srcPath, destPath string, atSeconds float64, size string) error
}

// DiskStorage writes under a root directory and shells out to ffmpeg for
// thumbnails.
type DiskStorage struct {
	root string
}

// NewDiskStorage constructs a DiskStorage rooted at dir.
func NewDiskStorage(dir string) *DiskStorage {
	return &DiskStorage{root: dir}
}

// WriteFile persists bytes at destPath relative to the storage root,
// creating parent directories as needed.
func (s *DiskStorage) WriteFile(data []byte, destPath string) error {
	full := filepath.Join(s.root, destPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

// ExtractVideoThumbnail grabs a single frame with ffmpeg. The call is
// bounded by a timeout on top of the caller's context.
func (s *DiskStorage) ExtractVideoThumbnail(ctx context.Context, srcPath, destPath string, atSeconds float64, size string) error {
	src := filepath.Join(s.root, srcPath)
	dest := filepath.Join(s.root, destPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dest), err)
	}

	ctx, cancel := context.WithTimeout(ctx, thumbnailTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", fmt.Sprintf("%.2f", atSeconds),
		"-i", src,
		"-frames:v", "1",
		"-s", size,
		"-y", dest,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, out)
	}
	return nil
}
