package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/linguahub/lingua-go-api/internal/dto"
)

var (
	// ErrUploadTooLarge indicates the recording exceeds the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the file is not an accepted audio type.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// FileStorage abstracts the blob store holding speaking recordings and
// attachments. The core never blocks on it inside a lifecycle transition.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

var allowedAudioTypes = map[string]struct{}{
	"audio/mpeg": {},
	"audio/ogg":  {},
	"audio/wav":  {},
	"audio/webm": {},
	"video/webm": {},
	"audio/mp4":  {},
}

// UploadService validates and stores speaking-answer recordings.
type UploadService interface {
	UploadAudio(ctx context.Context, file *multipart.FileHeader, studentID uint) (dto.UploadResponse, error)
}

type uploadService struct {
	storage FileStorage
	logger  zerolog.Logger
	maxSize int64
}

// NewUploadService constructs an upload service.
func NewUploadService(storage FileStorage, maxSizeMB int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	return &uploadService{
		storage: storage,
		logger:  logger.With().Str("component", "upload_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
	}
}

func (s *uploadService) UploadAudio(ctx context.Context, file *multipart.FileHeader, studentID uint) (dto.UploadResponse, error) {
	if file == nil {
		return dto.UploadResponse{}, fmt.Errorf("no file supplied")
	}

	if file.Size > s.maxSize {
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return dto.UploadResponse{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, s.maxSize+1))
	if err != nil {
		return dto.UploadResponse{}, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(data)
	if _, ok := allowedAudioTypes[strings.Split(detected.String(), ";")[0]]; !ok {
		return dto.UploadResponse{}, fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, detected.String())
	}

	url, err := s.storage.Upload(ctx, file.Filename, bytes.NewReader(data))
	if err != nil {
		return dto.UploadResponse{}, fmt.Errorf("failed to upload file: %w", err)
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Str("mime", detected.String()).
		Int("bytes", len(data)).
		Msg("audio uploaded")

	return dto.UploadResponse{URL: url, MimeType: detected.String(), Size: int64(len(data))}, nil
}
