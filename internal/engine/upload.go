package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"entity-admin/internal/query"
)

// Upload stores a file for an upload property and saves its path on the
// record. The stored file is removed again when the record could not be
// updated.
func (s *Service) Upload(ctx context.Context, entityID, rawKey, property, filename string, size int64, r io.Reader) (query.Record, error) {
	entity, err := s.Entity(entityID)
	if err != nil {
		return nil, err
	}
	p := entity.Property(property)
	if p == nil {
		return nil, UnknownFieldError(entity.ID, property)
	}
	if !p.IsUpload {
		return nil, InvalidPayloadError(fmt.Sprintf("%s is not an upload field", property))
	}
	if s.files == nil {
		return nil, ConfigurationError("file storage is not configured")
	}
	if s.cfg.MaxFileSize > 0 && size > s.cfg.MaxFileSize {
		return nil, NewAppError("FILE_TOO_LARGE", 413, fmt.Sprintf("File too large: %d bytes (max %d)", size, s.cfg.MaxFileSize))
	}

	fileID := uuid.New().String()
	path, err := s.files.Save(ctx, entity.ID, fileID, filename, r)
	if err != nil {
		return nil, fmt.Errorf("save file: %w", err)
	}

	rec, err := s.Update(ctx, entityID, rawKey, map[string]any{property: path})
	if err != nil {
		// The record already points at the file when only the hook failed.
		if errors.Is(err, ErrAfterUpdate) {
			return nil, err
		}
		if derr := s.files.Delete(context.WithoutCancel(ctx), path); derr != nil {
			s.logger.Warn("remove orphaned upload", zap.String("path", path), zap.Error(derr))
		}
		return nil, err
	}
	return rec, nil
}
