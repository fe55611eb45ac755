package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/nghiemng0310/nail/internal/dto"
	"github.com/wb-go/wbf/zlog"
)

type ImageHandler struct {
	service        domain.ImageService
	maxUploadSize  int64
	allowedFormats []string
}

func NewImageHandler(service domain.ImageService, maxUploadSizeMB int, allowedFormats []string) *ImageHandler {
	return &ImageHandler{
		service:        service,
		maxUploadSize:  int64(maxUploadSizeMB) * 1024 * 1024,
		allowedFormats: allowedFormats,
	}
}

// RegisterRoutes mounts the catalog routes. like wraps the like route, so
// callers can add rate limiting there.
func (h *ImageHandler) RegisterRoutes(r gin.IRouter, like ...gin.HandlerFunc) {
	r.GET("/categories", h.ListCategories)
	r.GET("/images", h.ListPage)
	r.GET("/images/all", h.ListAll)
	r.GET("/images/:id", h.GetImage)
	r.POST("/images", h.CreateImage)
	r.PUT("/images/:id", h.UpdateImage)
	r.DELETE("/images/:id", h.DeleteImage)
	r.POST("/images/:id/like", append(like, h.LikeImage)...)
}

// ListCategories GET /categories
func (h *ImageHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": domain.Categories})
}

// ListPage GET /images?page_size=&cursor=&category=
func (h *ImageHandler) ListPage(c *gin.Context) {
	pageSize := 0
	if s := c.Query("page_size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			h.writeError(c, domain.Validationf("page_size must be a positive integer"))
			return
		}
		pageSize = v
	}

	categories := c.QueryArray("category")
	if s := c.Query("categories"); s != "" {
		categories = append(categories, s)
	}

	page, err := h.service.ListPage(c.Request.Context(), domain.PageQuery{
		PageSize:   pageSize,
		Cursor:     c.Query("cursor"),
		Categories: dto.SplitCategories(categories),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MapPageToResponse(page))
}

// ListAll GET /images/all
func (h *ImageHandler) ListAll(c *gin.Context) {
	images, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ImageListResponse{
		Images: dto.MapImagesToResponse(images),
		Total:  len(images),
	})
}

// GetImage GET /images/:id
func (h *ImageHandler) GetImage(c *gin.Context) {
	image, err := h.service.GetImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapImageToResponse(image))
}

// CreateImage POST /images
func (h *ImageHandler) CreateImage(c *gin.Context) {
	var form dto.ImageForm
	if err := c.ShouldBind(&form); err != nil {
		h.writeError(c, domain.Validationf("invalid form: %v", err))
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to get file from request")
		h.writeError(c, domain.Validationf("no image file provided"))
		return
	}
	defer file.Close()

	if err := h.checkFile(header.Filename, header.Size); err != nil {
		h.writeError(c, err)
		return
	}

	image, err := h.service.CreateImage(c.Request.Context(), domain.CreateImageInput{
		Name:       form.Name,
		Categories: form.CategoryList(),
		Filename:   header.Filename,
		File:       file,
	}, logProgress(header.Filename))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.MapImageToResponse(image))
}

// UpdateImage PUT /images/:id
func (h *ImageHandler) UpdateImage(c *gin.Context) {
	var form dto.ImageForm
	if err := c.ShouldBind(&form); err != nil {
		h.writeError(c, domain.Validationf("invalid form: %v", err))
		return
	}

	in := domain.UpdateImageInput{Name: form.Name, Categories: form.CategoryList()}
	var progress domain.ProgressListener

	file, header, err := c.Request.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		if err := h.checkFile(header.Filename, header.Size); err != nil {
			h.writeError(c, err)
			return
		}
		in.Filename = header.Filename
		in.File = file
		progress = logProgress(header.Filename)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		h.writeError(c, domain.Validationf("invalid image field: %v", err))
		return
	}

	image, err := h.service.UpdateImage(c.Request.Context(), c.Param("id"), in, progress)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MapImageToResponse(image))
}

// DeleteImage DELETE /images/:id
func (h *ImageHandler) DeleteImage(c *gin.Context) {
	if err := h.service.DeleteImage(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LikeImage POST /images/:id/like
func (h *ImageHandler) LikeImage(c *gin.Context) {
	if err := h.service.LikeImage(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ImageHandler) checkFile(filename string, size int64) error {
	if h.maxUploadSize > 0 && size > h.maxUploadSize {
		return domain.Validationf("file size exceeds maximum allowed (%d MB)", h.maxUploadSize/(1024*1024))
	}
	if !h.isAllowedFormat(strings.ToLower(filepath.Ext(filename))) {
		return domain.Validationf("unsupported file format, allowed: %v", h.allowedFormats)
	}
	return nil
}

func (h *ImageHandler) isAllowedFormat(ext string) bool {
	if len(h.allowedFormats) == 0 {
		return true
	}
	ext = strings.TrimPrefix(ext, ".")
	for _, allowed := range h.allowedFormats {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// writeError maps domain errors onto HTTP statuses.
func (h *ImageHandler) writeError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		zlog.Logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	} else {
		zlog.Logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("request rejected")
	}
	c.JSON(status, dto.ErrorResponse{Error: code, Message: err.Error(), Code: status})
}

// StatusFor returns the HTTP status and error code for a domain error.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrPartialDelete):
		return http.StatusInternalServerError, "partial_delete"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrDecode):
		return http.StatusUnprocessableEntity, "decode_failed"
	case errors.Is(err, domain.ErrUpload):
		return http.StatusBadGateway, "upload_failed"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

// logProgress logs upload progress in quarter steps.
func logProgress(filename string) domain.ProgressListener {
	next := 25.0
	return domain.ProgressFunc(func(p float64) {
		if p < next {
			return
		}
		for next <= p {
			next += 25
		}
		zlog.Logger.Debug().Str("filename", filename).Str("progress", fmt.Sprintf("%.0f%%", p)).Msg("upload progress")
	})
}
