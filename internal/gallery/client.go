package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/nghiemng0310/nail/internal/dto"
	"github.com/nghiemng0310/nail/internal/infrastructure/storage"
)

// Client talks to the gallery API. It implements Pager and Liker and the
// admin operations used by the CLI.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListPage(ctx context.Context, q domain.PageQuery) (*domain.Page, error) {
	params := url.Values{}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	for _, cat := range q.Categories {
		params.Add("category", cat)
	}

	var resp dto.PageResponse
	if err := c.do(ctx, http.MethodGet, "/images?"+params.Encode(), nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.ToPage(), nil
}

func (c *Client) ListAll(ctx context.Context) ([]*domain.ImageRecord, error) {
	var resp dto.ImageListResponse
	if err := c.do(ctx, http.MethodGet, "/images/all", nil, "", &resp); err != nil {
		return nil, err
	}
	records := make([]*domain.ImageRecord, 0, len(resp.Images))
	for _, img := range resp.Images {
		records = append(records, img.ToRecord())
	}
	return records, nil
}

func (c *Client) GetImage(ctx context.Context, id string) (*domain.ImageRecord, error) {
	var resp dto.ImageResponse
	if err := c.do(ctx, http.MethodGet, "/images/"+url.PathEscape(id), nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.ToRecord(), nil
}

func (c *Client) LikeImage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/images/"+url.PathEscape(id)+"/like", nil, "", nil)
}

func (c *Client) DeleteImage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/images/"+url.PathEscape(id), nil, "", nil)
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var resp struct {
		Categories []string `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/categories", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// CreateImage uploads a new design. progress observes the request body
// leaving the client.
func (c *Client) CreateImage(ctx context.Context, in domain.CreateImageInput, progress domain.ProgressListener) (*domain.ImageRecord, error) {
	if in.File == nil {
		return nil, domain.Validationf("image file is required")
	}
	return c.sendForm(ctx, http.MethodPost, "/images", in.Name, in.Categories, in.Filename, in.File, progress)
}

// UpdateImage replaces name and categories, and the image when in.File is set.
func (c *Client) UpdateImage(ctx context.Context, id string, in domain.UpdateImageInput, progress domain.ProgressListener) (*domain.ImageRecord, error) {
	return c.sendForm(ctx, http.MethodPut, "/images/"+url.PathEscape(id), in.Name, in.Categories, in.Filename, in.File, progress)
}

func (c *Client) sendForm(ctx context.Context, method, path, name string, categories []string, filename string, file io.Reader, progress domain.ProgressListener) (*domain.ImageRecord, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if err := w.WriteField("name", name); err != nil {
		return nil, err
	}
	for _, cat := range categories {
		if err := w.WriteField("categories", cat); err != nil {
			return nil, err
		}
	}
	if file != nil {
		part, err := w.CreateFormFile("image", filename)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, fmt.Errorf("read image file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var reader io.Reader = body
	if progress != nil {
		reader = sizedBody{Reader: storage.NewProgressReader(body, int64(body.Len()), progress), size: int64(body.Len())}
	}

	var resp dto.ImageResponse
	if err := c.do(ctx, method, path, reader, w.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	return resp.ToRecord(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if sb, ok := body.(sizedBody); ok {
		req.ContentLength = sb.size
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// sizedBody keeps the request length known when the body is wrapped.
type sizedBody struct {
	io.Reader
	size int64
}

// ErrRateLimited is returned when the API throttles the caller.
var ErrRateLimited = errors.New("rate limited")

func decodeError(resp *http.Response) error {
	var body dto.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Message
	if msg == "" {
		msg = resp.Status
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		kind = domain.ErrValidation
	case http.StatusNotFound:
		kind = domain.ErrNotFound
	case http.StatusUnprocessableEntity:
		kind = domain.ErrDecode
	case http.StatusBadGateway:
		kind = domain.ErrUpload
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	default:
		kind = domain.ErrStore
	}
	return fmt.Errorf("%w: %s", kind, msg)
}
