package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/observability"
)

// Upload purposes.
const (
	PurposeQuizDocument = "quiz_document"
	PurposeAnswerFile   = "answer_file"
)

// ErrUploadScanFailed indicates the archive structure of the file is suspicious.
var ErrUploadScanFailed = errors.New("file scanning failed")

// FileStore is the external file store reachable by path.
type FileStore interface {
	Put(ctx context.Context, name string, reader io.Reader) (string, error)
	Open(ctx context.Context, storedPath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storedPath string) error
}

// DocumentService validates and stores quiz documents and answer files.
type DocumentService interface {
	Store(ctx context.Context, purpose string, file *multipart.FileHeader) (dto.DocumentUploadResponse, error)
	Open(ctx context.Context, storedPath string) (io.ReadCloser, error)
	Remove(ctx context.Context, storedPath string)
}

type documentService struct {
	store   FileStore
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewDocumentService constructs a document service.
func NewDocumentService(store FileStore, maxSizeMB int, logger zerolog.Logger) DocumentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 15
	}
	return &documentService{
		store:   store,
		logger:  logger.With().Str("component", "document_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/gema-quiz-api/internal/service/document"),
	}
}

func (s *documentService) Store(ctx context.Context, purpose string, file *multipart.FileHeader) (dto.DocumentUploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "document.store")
	defer span.End()

	span.SetAttributes(
		attribute.String("document.purpose", purpose),
		attribute.Int64("document.max_bytes", s.maxSize),
	)

	if s.store == nil {
		span.SetStatus(codes.Error, "no file store")
		return dto.DocumentUploadResponse{}, ErrFileStoreUnavailable
	}

	if file == nil {
		err := validationError("file", "file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.DocumentUploadResponse{}, err
	}
	span.SetAttributes(
		attribute.String("document.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("document.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		return dto.DocumentUploadResponse{}, s.reject(span, purpose, "size", ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.DocumentUploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.DocumentUploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.DocumentUploadResponse{}, s.reject(span, purpose, "size", ErrUploadTooLarge)
	}

	fileType := normalizeMime(mimetype.Detect(buf.Bytes()).String())
	span.SetAttributes(attribute.String("document.detected_mime", fileType))
	if !isAllowedDocumentType(fileType) {
		return dto.DocumentUploadResponse{}, s.reject(span, purpose, "type", ErrUploadTypeNotAllowed)
	}

	if err := s.scan(buf.Bytes(), fileType); err != nil {
		return dto.DocumentUploadResponse{}, s.reject(span, purpose, "scan", err)
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := sanitizeFileName(file.Filename)

	stored, err := s.store.Put(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.DocumentUploads().WithLabelValues(purpose, "storage_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.DocumentUploadResponse{}, err
	}

	observability.DocumentUploads().WithLabelValues(purpose, "stored").Inc()
	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().Str("purpose", purpose).Str("path", stored).Int("size_bytes", buf.Len()).Msg("document stored")

	return dto.DocumentUploadResponse{
		Path:      stored,
		FileName:  name,
		MimeType:  fileType,
		SizeBytes: int64(buf.Len()),
		Checksum:  hex.EncodeToString(checksum[:]),
	}, nil
}

func (s *documentService) Open(ctx context.Context, storedPath string) (io.ReadCloser, error) {
	if s.store == nil {
		return nil, ErrFileStoreUnavailable
	}
	if strings.TrimSpace(storedPath) == "" {
		return nil, ErrSubmissionNotFound
	}
	return s.store.Open(ctx, storedPath)
}

// Remove deletes a stored file, logging failures. Cleanup never fails the caller.
func (s *documentService) Remove(ctx context.Context, storedPath string) {
	if s.store == nil || strings.TrimSpace(storedPath) == "" {
		return
	}
	if err := s.store.Delete(ctx, storedPath); err != nil {
		s.logger.Warn().Err(err).Str("path", storedPath).Msg("failed to delete stored document")
	}
}

func (s *documentService) reject(span trace.Span, purpose, reason string, err error) error {
	observability.DocumentUploads().WithLabelValues(purpose, "rejected_"+reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason+" rejected")
	return err
}

func (s *documentService) scan(payload []byte, mime string) error {
	if mime != "application/zip" && mime != mimeDocx {
		return nil
	}

	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return ErrUploadScanFailed
	}
	var totalUncompressed uint64
	for _, f := range reader.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > uint64(s.maxSize*20) {
			return fmt.Errorf("archive uncompressed size too large: %w", ErrUploadScanFailed)
		}
	}
	return nil
}

const mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "document"
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func normalizeMime(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	if idx := strings.Index(lower, ";"); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	if strings.HasPrefix(lower, "image/") {
		return "image"
	}
	switch lower {
	case "application/zip", "application/x-zip-compressed":
		return "application/zip"
	default:
		return lower
	}
}

func isAllowedDocumentType(m string) bool {
	switch m {
	case "image", "application/pdf", "application/zip", mimeDocx, "application/msword", "text/plain":
		return true
	default:
		return false
	}
}
