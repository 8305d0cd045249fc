package validation

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/unifeed-dev/unifeed/internal/service"
)

var (
	ErrInvalidMimeType = errors.New("unsupported file type")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// CalculateMaxRequestSize returns the request size cap: the attachment
// limit plus overhead for the other form fields.
func CalculateMaxRequestSize(maxAttachmentSize, overhead int64) int64 {
	return maxAttachmentSize + overhead
}

func FormatSizeMB(sizeBytes int64) float64 {
	return float64(sizeBytes) / (1 << 20)
}

// ValidateAndParseMultipart enforces the request size limit and parses the
// multipart form.
func ValidateAndParseMultipart(r *http.Request, w http.ResponseWriter, maxRequestSize int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := r.ParseMultipartForm(maxRequestSize); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
	}
	return nil
}

// ValidatePhotos opens the uploaded files and checks each against the allowed
// image MIME types. Callers own closing the returned readers.
func ValidatePhotos(fileHeaders []*multipart.FileHeader, allowedImageMimes []string) ([]*service.PendingUpload, error) {
	if len(fileHeaders) == 0 {
		return nil, nil
	}

	allowedMimes := BuildAllowedMimeMap(allowedImageMimes)

	var pending []*service.PendingUpload
	for _, fileHeader := range fileHeaders {
		file, err := fileHeader.Open()
		if err != nil {
			closePending(pending)
			return nil, fmt.Errorf("failed to open uploaded file: %w", err)
		}

		mimeType, err := DetectMimeType(fileHeader)
		if err != nil {
			file.Close()
			closePending(pending)
			return nil, err
		}

		if !allowedMimes[mimeType] {
			file.Close()
			closePending(pending)
			return nil, fmt.Errorf("%w: %s (file: %s)", ErrInvalidMimeType, mimeType, fileHeader.Filename)
		}

		pending = append(pending, &service.PendingUpload{
			FileName:  fileHeader.Filename,
			MimeType:  mimeType,
			SizeBytes: fileHeader.Size,
			Data:      file,
		})
	}

	return pending, nil
}

func BuildAllowedMimeMap(imageMimes []string) map[string]bool {
	allowedMimes := make(map[string]bool)
	for _, m := range imageMimes {
		allowedMimes[m] = true
	}
	return allowedMimes
}

func DetectMimeType(fileHeader *multipart.FileHeader) (string, error) {
	mimeType := fileHeader.Header.Get("Content-Type")

	// If no Content-Type or it's generic, detect from extension
	if mimeType == "" || mimeType == "application/octet-stream" {
		ext := filepath.Ext(fileHeader.Filename)
		if detectedType := mime.TypeByExtension(ext); detectedType != "" {
			mimeType = detectedType
		}
	}

	if mimeType == "" {
		return "", fmt.Errorf("could not detect MIME type for file: %s", fileHeader.Filename)
	}

	return mimeType, nil
}

func closePending(pending []*service.PendingUpload) {
	for _, p := range pending {
		if closer, ok := p.Data.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
}
