package dto

import (
	"time"

	"github.com/nghiemng0310/nail/internal/domain"
)

type ImageResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"image_url"`
	Categories []string  `json:"categories"`
	Likes      int64     `json:"likes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PageResponse struct {
	Images     []*ImageResponse `json:"images"`
	NextCursor *string          `json:"next_cursor"`
	HasMore    bool             `json:"has_more"`
}

type ImageListResponse struct {
	Images []*ImageResponse `json:"images"`
	Total  int              `json:"total"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func MapImageToResponse(img *domain.ImageRecord) *ImageResponse {
	if img == nil {
		return nil
	}
	categories := img.Categories
	if categories == nil {
		categories = []string{}
	}
	return &ImageResponse{
		ID:         img.ID,
		Name:       img.Name,
		ImageURL:   img.ImageURL,
		Categories: categories,
		Likes:      img.Likes,
		CreatedAt:  img.CreatedAt,
		UpdatedAt:  img.UpdatedAt,
	}
}

func MapImagesToResponse(images []*domain.ImageRecord) []*ImageResponse {
	responses := make([]*ImageResponse, 0, len(images))
	for _, img := range images {
		responses = append(responses, MapImageToResponse(img))
	}
	return responses
}

// MapPageToResponse renders an empty cursor as JSON null.
func MapPageToResponse(page *domain.Page) *PageResponse {
	resp := &PageResponse{
		Images:  MapImagesToResponse(page.Records),
		HasMore: page.HasMore,
	}
	if page.NextCursor != "" {
		cursor := page.NextCursor
		resp.NextCursor = &cursor
	}
	return resp
}

// ToRecord converts a response back into the domain record.
func (r *ImageResponse) ToRecord() *domain.ImageRecord {
	return &domain.ImageRecord{
		ID:         r.ID,
		Name:       r.Name,
		ImageURL:   r.ImageURL,
		Categories: r.Categories,
		Likes:      r.Likes,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// ToPage converts a listing response back into a domain page.
func (p *PageResponse) ToPage() *domain.Page {
	page := &domain.Page{HasMore: p.HasMore, Records: make([]*domain.ImageRecord, 0, len(p.Images))}
	for _, img := range p.Images {
		page.Records = append(page.Records, img.ToRecord())
	}
	if p.NextCursor != nil {
		page.NextCursor = *p.NextCursor
	}
	return page
}
