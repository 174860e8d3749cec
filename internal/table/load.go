package table

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest spreadsheet accepted for loading.
const MaxFileSize = 50 * 1024 * 1024

var (
	ErrNotFound          = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrEmptyFile         = errors.New("file is empty")
)

// LoadOptions control spreadsheet loading.
type LoadOptions struct {
	// Sheet selects an xlsx worksheet by name (case-insensitive).
	Sheet string
	// SheetIndex selects an xlsx worksheet by 1-based position when Sheet is empty.
	SheetIndex int
	// Delimiter overrides CSV delimiter detection.
	Delimiter rune
	// MaxRows truncates the table after this many data rows (0 = unlimited).
	MaxRows int
}

// SupportedExtensions lists file extensions Load understands.
func SupportedExtensions() []string { return []string{".xlsx", ".xlsm", ".csv", ".tsv"} }

// IsSupported reports whether path has a loadable extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// Validate checks that path exists, is a regular non-empty file within MaxFileSize,
// and carries a supported extension.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if !IsSupported(path) {
		return fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, filepath.Ext(path), strings.Join(SupportedExtensions(), ", "))
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("%w: %s is %.1f MB (max %d MB)", ErrFileTooLarge, path, float64(info.Size())/1024/1024, MaxFileSize/1024/1024)
	}
	return nil
}

// Load validates path and reads it into a Table based on its extension.
func Load(path string, opt LoadOptions) (*Table, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, opt)
	default:
		return LoadCSV(path, opt)
	}
}

func truncate(records [][]string, maxRows int) [][]string {
	if maxRows > 0 && len(records) > maxRows {
		return records[:maxRows]
	}
	return records
}
