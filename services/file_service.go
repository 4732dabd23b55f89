package services

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/mindmates/backend/apperrors"
)

// MaxFileSize is the ceiling for chat attachments (10 MiB).
const MaxFileSize = 10 << 20

const uploadFolder = "mindmates_attachments"

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".txt":  true,
}

// FileService stores chat attachments in Cloudinary and hands back a
// retrievable URL.
type FileService struct {
	cld *cloudinary.Cloudinary
}

func NewFileService(cloudinaryURL string) (*FileService, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &FileService{cld: cld}, nil
}

func (s *FileService) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	safeName := SanitizeFilename(filename)
	result, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:   uploadFolder,
		PublicID: strings.TrimSuffix(safeName, filepath.Ext(safeName)),
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "file upload failed", err)
	}
	return result.SecureURL, nil
}

// ValidateFile enforces the attachment size ceiling and extension allow-list.
func ValidateFile(filename string, size int) error {
	if size > MaxFileSize {
		return apperrors.TooLarge("file too large (max 10MB)")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return apperrors.UnsupportedMedia("file type not allowed: " + ext)
	}
	return nil
}

// SanitizeFilename strips any path components and reduces the name to a
// restricted character set.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	sanitized := b.String()
	if sanitized == "" || strings.Trim(sanitized, "._") == "" {
		return "file"
	}
	return sanitized
}
