package cloudinary

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores quiz documents and answer files on Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
		now:    time.Now,
	}, nil
}

// Put uploads the file and returns its secure URL, which is the stored path.
func (s *Service) Put(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       strings.Trim(s.folder, "/"),
		PublicID:     buildPublicID(name, s.now()),
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")

	return result.SecureURL, nil
}

// Open downloads a previously stored asset.
func (s *Service) Open(ctx context.Context, storedPath string) (io.ReadCloser, error) {
	if !strings.HasPrefix(storedPath, "https://") && !strings.HasPrefix(storedPath, "http://") {
		return nil, fmt.Errorf("not a cloudinary url: %s", storedPath)
	}

	agent := fiber.Get(storedPath)
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	}
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to download asset: %w", errs[0])
	}
	if status != fiber.StatusOK {
		return nil, fmt.Errorf("failed to download asset: status %d", status)
	}

	return io.NopCloser(bytes.NewReader(body)), nil
}

// Delete destroys the asset behind a stored URL.
func (s *Service) Delete(ctx context.Context, storedPath string) error {
	resourceType, publicID, err := parseAssetURL(storedPath)
	if err != nil {
		return err
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	s.logger.Info().Str("public_id", publicID).Str("result", result.Result).Msg("file removed from cloudinary")
	return nil
}

// parseAssetURL extracts the resource type and public id from a delivery URL such as
// https://res.cloudinary.com/<cloud>/image/upload/v1700000000/gema/quiz/answer-1700000000.pdf
func parseAssetURL(storedPath string) (string, string, error) {
	const marker = "/upload/"
	idx := strings.Index(storedPath, marker)
	if idx < 0 {
		return "", "", fmt.Errorf("not a cloudinary delivery url: %s", storedPath)
	}

	prefix := storedPath[:idx]
	resourceType := path.Base(prefix)

	rest := storedPath[idx+len(marker):]
	if slash := strings.Index(rest, "/"); slash > 0 && rest[0] == 'v' && isDigits(rest[1:slash]) {
		rest = rest[slash+1:]
	}

	publicID := rest
	if resourceType != "raw" {
		publicID = strings.TrimSuffix(rest, path.Ext(rest))
	}
	if publicID == "" {
		return "", "", fmt.Errorf("missing public id in %s", storedPath)
	}

	return resourceType, publicID, nil
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func buildPublicID(name string, now time.Time) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	return fmt.Sprintf("%s-%d", base, now.UnixNano())
}
