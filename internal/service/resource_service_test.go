package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/pkg/storage"
)

type resourceRepoStub struct {
	resources map[string]*models.Resource
}

func newResourceRepoStub() *resourceRepoStub {
	return &resourceRepoStub{resources: map[string]*models.Resource{}}
}

func (r *resourceRepoStub) Create(ctx context.Context, resource *models.Resource) error {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	resource.CreatedAt = time.Now().UTC()
	clone := *resource
	r.resources[resource.ID] = &clone
	return nil
}

func (r *resourceRepoStub) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	resource, ok := r.resources[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *resource
	return &clone, nil
}

func (r *resourceRepoStub) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	var out []models.Resource
	for _, resource := range r.resources {
		if filter.PublicOnly && !resource.IsPublic {
			if resource.Woreda == nil || filter.Woreda == "" {
				continue
			}
		}
		out = append(out, *resource)
	}
	return out, len(out), nil
}

func (r *resourceRepoStub) Update(ctx context.Context, resource *models.Resource) error {
	if _, ok := r.resources[resource.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *resource
	r.resources[resource.ID] = &clone
	return nil
}

func (r *resourceRepoStub) IncrementDownloadCount(ctx context.Context, id string) error {
	if resource, ok := r.resources[id]; ok {
		resource.DownloadCount++
	}
	return nil
}

func (r *resourceRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.resources, id)
	return nil
}

func newResourceServiceForTest(t *testing.T) (*ResourceService, *resourceRepoStub) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := newResourceRepoStub()
	svc := NewResourceService(repo, files, nil, zap.NewNop(), 1024)
	return svc, repo
}

func TestResourceServiceUploadAndDownload(t *testing.T) {
	svc, repo := newResourceServiceForTest(t)
	officer := testOfficer(models.DepartmentWater)

	resource, err := svc.Upload(context.Background(), officer, UploadResourceRequest{
		Title:    "Service guide",
		FileName: "guide.pdf",
		Size:     12,
		IsPublic: true,
	}, strings.NewReader("file content"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resource.FileURL, "/uploads/"))
	assert.True(t, strings.HasSuffix(resource.FileURL, ".pdf"))
	require.NotNil(t, resource.FileName)
	assert.Equal(t, "guide.pdf", *resource.FileName)

	got, file, err := svc.Download(context.Background(), testResident(), resource.ID)
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "file content", string(content))
	assert.Equal(t, 1, got.DownloadCount)

	stored, err := repo.FindByID(context.Background(), resource.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DownloadCount)
}

func TestResourceServiceUploadGuards(t *testing.T) {
	svc, _ := newResourceServiceForTest(t)

	_, err := svc.Upload(context.Background(), testResident(), UploadResourceRequest{
		Title:    "Nope",
		FileName: "nope.txt",
	}, strings.NewReader("x"))
	require.Error(t, err)

	_, err = svc.Upload(context.Background(), testOfficer(models.DepartmentWater), UploadResourceRequest{
		Title:    "Too big",
		FileName: "big.bin",
		Size:     4096,
	}, strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestResourceServiceResidentVisibility(t *testing.T) {
	svc, repo := newResourceServiceForTest(t)
	resident := testResident()
	otherWoreda := "Woreda 9"

	repo.resources["r1"] = &models.Resource{ID: "r1", Title: "Internal memo", Woreda: &otherWoreda}

	_, err := svc.Get(context.Background(), resident, "r1")
	require.Error(t, err)

	// Same district is visible even when not public.
	own := resident.Woreda
	repo.resources["r2"] = &models.Resource{ID: "r2", Title: "Local schedule", Woreda: &own}
	_, err = svc.Get(context.Background(), resident, "r2")
	require.NoError(t, err)

	repo.resources["r3"] = &models.Resource{ID: "r3", Title: "Public guide", IsPublic: true}
	_, err = svc.Get(context.Background(), resident, "r3")
	require.NoError(t, err)
}

func TestResourceServiceManageGuards(t *testing.T) {
	svc, repo := newResourceServiceForTest(t)
	uploader := testOfficer(models.DepartmentWater)
	repo.resources["r1"] = &models.Resource{ID: "r1", Title: "Guide", UploadedBy: uploader.ID}

	title := "Renamed"
	otherOfficer := &models.User{ID: "officer-2", Role: models.RoleOfficer, Woreda: "Woreda 1", IsActive: true}
	_, err := svc.Update(context.Background(), otherOfficer, "r1", UpdateResourceRequest{Title: &title})
	require.Error(t, err)

	updated, err := svc.Update(context.Background(), uploader, "r1", UpdateResourceRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	subcity := &models.User{ID: "subcity-1", Role: models.RoleSubcityAdmin}
	require.NoError(t, svc.Delete(context.Background(), subcity, "r1"))
	assert.Empty(t, repo.resources)
}
