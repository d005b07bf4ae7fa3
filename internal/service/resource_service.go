package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/scope"
	"github.com/yegara-dev/community-api/internal/woreda"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
	"github.com/yegara-dev/community-api/pkg/storage"
)

type resourceRepository interface {
	Create(ctx context.Context, resource *models.Resource) error
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error)
	Update(ctx context.Context, resource *models.Resource) error
	IncrementDownloadCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// UploadResourceRequest is the file upload payload accompanying the stream.
type UploadResourceRequest struct {
	Title       string                   `json:"title" validate:"required"`
	Description *string                  `json:"description"`
	FileName    string                   `json:"fileName" validate:"required"`
	ContentType string                   `json:"contentType"`
	Size        int64                    `json:"size"`
	Woreda      *string                  `json:"woreda"`
	Department  *models.Department       `json:"department"`
	Category    *models.ResourceCategory `json:"category"`
	IsPublic    bool                     `json:"isPublic"`
}

// UpdateResourceRequest carries a partial metadata edit.
type UpdateResourceRequest struct {
	Title       *string                  `json:"title"`
	Description *string                  `json:"description"`
	Woreda      *string                  `json:"woreda"`
	Department  *models.Department       `json:"department"`
	Category    *models.ResourceCategory `json:"category"`
	IsPublic    *bool                    `json:"isPublic"`
}

// ResourceService manages uploaded documents and their download flow.
type ResourceService struct {
	repo      resourceRepository
	files     *storage.LocalStorage
	validator *validator.Validate
	logger    *zap.Logger

	maxFileSize int64
}

// NewResourceService constructs a ResourceService instance.
func NewResourceService(repo resourceRepository, files *storage.LocalStorage, validate *validator.Validate, logger *zap.Logger, maxFileSize int64) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResourceService{repo: repo, files: files, validator: validate, logger: logger, maxFileSize: maxFileSize}
}

// Upload stores the file stream and creates the resource record. Only
// officers and admins upload.
func (s *ResourceService) Upload(ctx context.Context, actor *models.User, req UploadResourceRequest, file io.Reader) (*models.Resource, error) {
	if actor.Role == models.RoleResident {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to upload resources")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	if s.maxFileSize > 0 && req.Size > s.maxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.maxFileSize))
	}

	// Stored name is unique; the original name survives in metadata.
	storedName := uuid.NewString() + strings.ToLower(filepath.Ext(req.FileName))
	if _, err := s.files.SaveStream(storedName, file); err != nil {
		return nil, fmt.Errorf("store resource file: %w", err)
	}

	resource := &models.Resource{
		Title:       req.Title,
		Description: req.Description,
		FileURL:     "/uploads/" + storedName,
		FileName:    &req.FileName,
		UploadedBy:  actor.ID,
		Department:  req.Department,
		Woreda:      req.Woreda,
		Category:    req.Category,
		IsPublic:    req.IsPublic,
	}
	if req.ContentType != "" {
		resource.FileType = &req.ContentType
	}
	if req.Size > 0 {
		resource.FileSize = &req.Size
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		if removeErr := s.files.Delete(storedName); removeErr != nil {
			s.logger.Warn("failed to clean up orphaned upload", zap.Error(removeErr))
		}
		return nil, fmt.Errorf("create resource: %w", err)
	}

	s.logger.Info("resource uploaded",
		zap.String("resource_id", resource.ID),
		zap.String("uploaded_by", actor.ID))
	return resource, nil
}

// List returns the resources visible to the actor. Residents see public
// resources plus those scoped to their district.
func (s *ResourceService) List(ctx context.Context, actor *models.User, q models.ListQuery) ([]models.Resource, int, error) {
	sc, err := scope.ForList(actor, scope.KindResources)
	if err != nil {
		return nil, 0, err
	}

	filter := models.ResourceFilter{Query: q}
	if sc.PublicOnly {
		filter.PublicOnly = true
		filter.Woreda = woreda.MatchPattern(sc.Woreda)
	} else if sc.WoredaPattern != "" {
		filter.Woreda = sc.WoredaPattern
	}
	return s.repo.List(ctx, filter)
}

// Get returns one resource record subject to visibility.
func (s *ResourceService) Get(ctx context.Context, actor *models.User, id string) (*models.Resource, error) {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, fmt.Errorf("find resource by id: %w", err)
	}
	if err := s.canView(actor, resource); err != nil {
		return nil, err
	}
	return resource, nil
}

// Download opens the stored file and bumps the download counter.
func (s *ResourceService) Download(ctx context.Context, actor *models.User, id string) (*models.Resource, *os.File, error) {
	resource, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}

	file, err := s.files.Open(filepath.Base(resource.FileURL))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "resource file is missing")
		}
		return nil, nil, fmt.Errorf("open resource file: %w", err)
	}

	if err := s.repo.IncrementDownloadCount(ctx, id); err != nil {
		s.logger.Warn("failed to increment download count", zap.Error(err))
	}
	resource.DownloadCount++
	return resource, file, nil
}

// Update applies a partial metadata edit. Only the uploader or an admin may
// edit.
func (s *ResourceService) Update(ctx context.Context, actor *models.User, id string, req UpdateResourceRequest) (*models.Resource, error) {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, fmt.Errorf("find resource by id: %w", err)
	}
	if err := s.canManage(actor, resource); err != nil {
		return nil, err
	}

	if req.Title != nil {
		resource.Title = *req.Title
	}
	if req.Description != nil {
		resource.Description = req.Description
	}
	if req.Woreda != nil {
		resource.Woreda = req.Woreda
	}
	if req.Department != nil {
		resource.Department = req.Department
	}
	if req.Category != nil {
		resource.Category = req.Category
	}
	if req.IsPublic != nil {
		resource.IsPublic = *req.IsPublic
	}

	if err := s.repo.Update(ctx, resource); err != nil {
		return nil, fmt.Errorf("update resource: %w", err)
	}
	return resource, nil
}

// Delete removes the record and its stored file.
func (s *ResourceService) Delete(ctx context.Context, actor *models.User, id string) error {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return fmt.Errorf("find resource by id: %w", err)
	}
	if err := s.canManage(actor, resource); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if err := s.files.Delete(filepath.Base(resource.FileURL)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to delete resource file", zap.Error(err))
	}
	return nil
}

func (s *ResourceService) canView(actor *models.User, resource *models.Resource) error {
	if actor.Role != models.RoleResident || resource.IsPublic {
		return nil
	}
	if resource.Woreda != nil && woreda.Same(*resource.Woreda, actor.Woreda) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not authorized to access this resource")
}

func (s *ResourceService) canManage(actor *models.User, resource *models.Resource) error {
	if actor.Role == models.RoleSubcityAdmin || resource.UploadedBy == actor.ID {
		return nil
	}
	if actor.Role == models.RoleWoredaAdmin && resource.Woreda != nil && woreda.Same(*resource.Woreda, actor.Woreda) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not authorized to manage this resource")
}
