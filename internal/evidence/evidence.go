// Package evidence validates and stores photos attached to claims.
package evidence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kc-allan/at-insurance/internal/apperr"
)

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

type File struct {
	Name string
	Size int64
	Body io.ReadSeeker

	contentType string
}

func (f File) ContentType() string {
	return f.contentType
}

type Limits struct {
	MaxFiles int
	MaxBytes int64
}

// Store persists one claim photo and returns the path recorded on the ClaimImage.
type Store interface {
	Save(ctx context.Context, claimID string, file File) (string, error)
}

// Validate checks count, size, extension and sniffed content type of each file.
// On success the content type is recorded on each file and bodies are rewound.
func Validate(files []File, limits Limits) ([]File, error) {
	if limits.MaxFiles > 0 && len(files) > limits.MaxFiles {
		return nil, apperr.Validation(apperr.CodeInvalidUpload, fmt.Sprintf("at most %d images are allowed", limits.MaxFiles))
	}
	out := make([]File, 0, len(files))
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name))
		want, ok := allowedExt[ext]
		if !ok {
			return nil, apperr.Validation(apperr.CodeInvalidUpload, "Only image files are allowed!")
		}
		if limits.MaxBytes > 0 && file.Size > limits.MaxBytes {
			return nil, apperr.Validation(apperr.CodeInvalidUpload, fmt.Sprintf("%s exceeds the %d byte limit", file.Name, limits.MaxBytes))
		}
		sniffed, err := sniff(file.Body)
		if err != nil {
			return nil, apperr.Validation(apperr.CodeInvalidUpload, "could not read "+file.Name)
		}
		if sniffed != want {
			return nil, apperr.Validation(apperr.CodeInvalidUpload, "Only image files are allowed!")
		}
		file.contentType = sniffed
		out = append(out, file)
	}
	return out, nil
}

func sniff(body io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(body, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".jpeg" {
		return ".jpg"
	}
	return ext
}
