package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sharesync/api/internal/rbac"
	"sharesync/api/internal/storage"
	"sharesync/api/internal/store"
	"sharesync/api/internal/util"
)

const (
	fileURLTTL  = 15 * time.Minute
	maxFileName = 255
)

type UploadFileInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (s *Service) fileStorageReady() bool {
	return s.files != nil && s.files.Configured()
}

func (s *Service) UploadFile(ctx context.Context, actor Session, projectID string, input UploadFileInput) (map[string]any, error) {
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionContribute); err != nil {
		return nil, err
	}
	if !s.fileStorageReady() {
		return nil, storage.ErrNotConfigured
	}
	if limit := s.MaxUploadBytes(); limit > 0 && input.Size > limit {
		return nil, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File is too large", map[string]any{"maxBytes": limit})
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || runeLen(name) > maxFileName {
		return nil, validationError(fmt.Sprintf("file name must be 1-%d characters", maxFileName))
	}
	contentType := firstNonBlank(input.ContentType, "application/octet-stream")

	file := store.File{
		ID:           util.NewID("fil"),
		ProjectID:    projectID,
		UploaderID:   actor.UserID,
		UploaderName: actor.UserName,
		Name:         name,
		ContentType:  contentType,
		Size:         input.Size,
		CreatedAt:    s.now(),
	}
	file.ObjectKey = storage.ProjectFileKey(projectID, file.ID, name)
	if err := s.files.Put(ctx, file.ObjectKey, input.Body, input.Size, contentType); err != nil {
		return nil, err
	}
	if err := s.store.InsertFile(ctx, file); err != nil {
		if removeErr := s.files.Remove(ctx, file.ObjectKey); removeErr != nil {
			s.logger.Warn().Err(removeErr).Str("key", file.ObjectKey).Msg("remove orphaned object")
		}
		return nil, err
	}
	s.recordActivity(ctx, actor, projectID, "file.uploaded", "file", file.ID, "uploaded "+name)
	return map[string]any{"file": filePayload(file)}, nil
}

func (s *Service) ListFiles(ctx context.Context, actor Session, projectID string) (map[string]any, error) {
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	files, err := s.store.ListFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(files))
	for _, file := range files {
		items = append(items, filePayload(file))
	}
	return map[string]any{"files": items}, nil
}

func (s *Service) loadFile(ctx context.Context, actor Session, fileID string) (store.File, projectAccess, error) {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		if isNoRows(err) {
			return store.File{}, projectAccess{}, notFound("File")
		}
		return store.File{}, projectAccess{}, err
	}
	access, err := s.authorize(ctx, actor, file.ProjectID, rbac.ActionRead)
	if err != nil {
		return store.File{}, projectAccess{}, err
	}
	return file, access, nil
}

// FileURL returns the file row and a short-lived presigned download URL.
func (s *Service) FileURL(ctx context.Context, actor Session, fileID string) (map[string]any, string, error) {
	file, _, err := s.loadFile(ctx, actor, fileID)
	if err != nil {
		return nil, "", err
	}
	if !s.fileStorageReady() {
		return nil, "", storage.ErrNotConfigured
	}
	signed, err := s.files.PresignGet(ctx, file.ObjectKey, fileURLTTL, file.Name)
	if err != nil {
		return nil, "", err
	}
	return map[string]any{
		"file":      filePayload(file),
		"url":       signed,
		"expiresAt": timestamp(s.now().Add(fileURLTTL)),
	}, signed, nil
}

func (s *Service) DeleteFile(ctx context.Context, actor Session, fileID string) error {
	file, access, err := s.loadFile(ctx, actor, fileID)
	if err != nil {
		return err
	}
	if !canEditContent(access, actor, file.UploaderID) {
		return forbidden()
	}
	if !s.fileStorageReady() {
		return storage.ErrNotConfigured
	}
	if err := s.files.Remove(ctx, file.ObjectKey); err != nil {
		return err
	}
	if err := s.store.DeleteFile(ctx, file.ID); err != nil {
		return err
	}
	s.recordActivity(ctx, actor, file.ProjectID, "file.deleted", "file", file.ID, "deleted "+file.Name)
	return nil
}
