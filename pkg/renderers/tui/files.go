package tui

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-onboard/pkg/answers"
)

// FileResolver turns the path typed by the user into a file reference.
type FileResolver func(path string) (answers.FileRef, error)

// LocalFiles resolves paths against the local filesystem. The file must exist
// and be a regular file; only its metadata is recorded.
func LocalFiles(path string) (answers.FileRef, error) {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	info, err := os.Stat(cleaned)
	if err != nil {
		return answers.FileRef{}, fmt.Errorf("cannot read %s: %w", cleaned, err)
	}
	if !info.Mode().IsRegular() {
		return answers.FileRef{}, fmt.Errorf("%s is not a regular file", cleaned)
	}
	return answers.FileRef{
		Name:        filepath.Base(cleaned),
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(cleaned))),
	}, nil
}
