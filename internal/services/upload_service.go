package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/storage"
	drift_errors "driftchat/pkg/errors"
)

const maxUploadBytes = 100 << 20

type UploadService struct {
	s3 *storage.Client
}

func NewUploadService(s3 *storage.Client) *UploadService {
	return &UploadService{s3: s3}
}

// UploadTicket is everything a client needs to push a file straight to the
// bucket and then reference it in a message.
type UploadTicket struct {
	UploadURL string            `json:"uploadUrl"`
	Headers   map[string]string `json:"headers"`
	Key       string            `json:"key"`
	FileURL   string            `json:"fileUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

func (s *UploadService) PresignUpload(ctx context.Context, userID uuid.UUID, filename, contentType string, sizeBytes int64) (UploadTicket, error) {
	if s.s3 == nil {
		return UploadTicket{}, drift_errors.ErrUpstreamUnavailable
	}
	if sizeBytes <= 0 || sizeBytes > maxUploadBytes {
		return UploadTicket{}, drift_errors.ErrValidation
	}

	key, err := s.s3.ObjectKey(userID, contentType, filename)
	if err != nil {
		return UploadTicket{}, err
	}
	url, headers, err := s.s3.PresignPut(ctx, key, contentType, sizeBytes)
	if err != nil {
		return UploadTicket{}, err
	}

	return UploadTicket{
		UploadURL: url,
		Headers:   headers,
		Key:       key,
		FileURL:   s.s3.FileURL(key),
		ExpiresAt: s.s3.ExpiresAt(),
	}, nil
}
