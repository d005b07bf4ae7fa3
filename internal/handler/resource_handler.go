package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yegara-dev/community-api/internal/middleware"
	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/service"
	appErrors "github.com/yegara-dev/community-api/pkg/errors"
	"github.com/yegara-dev/community-api/pkg/response"
)

// ResourceHandler exposes shared resource endpoints.
type ResourceHandler struct {
	resources *service.ResourceService
}

// NewResourceHandler constructs ResourceHandler.
func NewResourceHandler(resources *service.ResourceService) *ResourceHandler {
	return &ResourceHandler{resources: resources}
}

// List godoc
// @Summary List resources visible to the caller
// @Tags Resources
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	q := models.ParseListQuery(c.Request.URL.Query())

	resources, total, err := h.resources.List(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, resources, len(resources), models.NewPagination(q.Page, q.Limit, total))
}

// Upload godoc
// @Summary Upload a resource file
// @Tags Resources
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Param title formData string true "Title"
// @Success 201 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Upload(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read uploaded file"))
		return
	}
	defer file.Close()

	req := service.UploadResourceRequest{
		Title:       c.PostForm("title"),
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		IsPublic:    c.PostForm("isPublic") == "true",
	}
	if desc := c.PostForm("description"); desc != "" {
		req.Description = &desc
	}
	if w := c.PostForm("woreda"); w != "" {
		req.Woreda = &w
	}
	if d := c.PostForm("department"); d != "" {
		dept := models.Department(d)
		req.Department = &dept
	}
	if cat := c.PostForm("category"); cat != "" {
		category := models.ResourceCategory(cat)
		req.Category = &category
	}

	resource, err := h.resources.Upload(c.Request.Context(), actor, req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resource)
}

// Get godoc
// @Summary Get one resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	resource, err := h.resources.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource)
}

// Download godoc
// @Summary Download a resource file
// @Tags Resources
// @Produce octet-stream
// @Param id path string true "Resource ID"
// @Success 200 {file} binary
// @Router /resources/{id}/download [get]
func (h *ResourceHandler) Download(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	resource, file, err := h.resources.Download(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	name := "download"
	if resource.FileName != nil {
		name = *resource.FileName
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	if resource.FileType != nil {
		c.Header("Content-Type", *resource.FileType)
	}
	if resource.FileSize != nil {
		c.Header("Content-Length", strconv.FormatInt(*resource.FileSize, 10))
	}
	c.File(file.Name())
}

// Update godoc
// @Summary Update resource metadata
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body service.UpdateResourceRequest true "Partial resource payload"
// @Success 200 {object} response.Envelope
// @Router /resources/{id} [put]
func (h *ResourceHandler) Update(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	resource, err := h.resources.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource)
}

// Delete godoc
// @Summary Delete one resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	actor, ok := middleware.Account(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.resources.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, nil, "resource deleted")
}
