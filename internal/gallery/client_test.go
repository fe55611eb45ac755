package gallery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiURL = "http://api.gallery.test"

func setupMock(t *testing.T) *Client {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewClient(apiURL+"/", 5*time.Second)
}

const pageBody = `{
	"images": [
		{"id":"b","name":"Rose","image_url":"http://files/b.webp","categories":["Gel"],"likes":5,
		 "created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-02T10:00:00Z"}
	],
	"next_cursor": "Y3Vyc29y",
	"has_more": true
}`

func TestClient_ListPage(t *testing.T) {
	c := setupMock(t)

	var got *http.Request
	httpmock.RegisterResponder(http.MethodGet, apiURL+"/images",
		func(req *http.Request) (*http.Response, error) {
			got = req
			return httpmock.NewStringResponse(http.StatusOK, pageBody), nil
		})

	page, err := c.ListPage(context.Background(), domain.PageQuery{PageSize: 5, Cursor: "abc", Categories: []string{"Gel", "Cưới"}})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "5", got.URL.Query().Get("page_size"))
	assert.Equal(t, "abc", got.URL.Query().Get("cursor"))
	assert.Equal(t, []string{"Gel", "Cưới"}, got.URL.Query()["category"])

	require.Len(t, page.Records, 1)
	assert.Equal(t, "Rose", page.Records[0].Name)
	assert.Equal(t, int64(5), page.Records[0].Likes)
	assert.Equal(t, "Y3Vyc29y", page.NextCursor)
	assert.True(t, page.HasMore)
}

func TestClient_ErrorMapping(t *testing.T) {
	c := setupMock(t)

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, domain.ErrValidation},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnprocessableEntity, domain.ErrDecode},
		{http.StatusBadGateway, domain.ErrUpload},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, domain.ErrStore},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			httpmock.RegisterResponder(http.MethodPost, apiURL+"/images/x/like",
				httpmock.NewStringResponder(tt.status, `{"error":"e","message":"details here"}`))

			err := c.LikeImage(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Contains(t, err.Error(), "details here")
		})
	}
}

func TestClient_LikeAndDelete(t *testing.T) {
	c := setupMock(t)
	httpmock.RegisterResponder(http.MethodPost, apiURL+"/images/a/like", httpmock.NewStringResponder(http.StatusNoContent, ""))
	httpmock.RegisterResponder(http.MethodDelete, apiURL+"/images/a", httpmock.NewStringResponder(http.StatusNoContent, ""))

	require.NoError(t, c.LikeImage(context.Background(), "a"))
	require.NoError(t, c.DeleteImage(context.Background(), "a"))

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+apiURL+"/images/a/like"])
	assert.Equal(t, 1, info["DELETE "+apiURL+"/images/a"])
}

func TestClient_CreateImageSendsMultipart(t *testing.T) {
	c := setupMock(t)

	httpmock.RegisterResponder(http.MethodPost, apiURL+"/images",
		func(req *http.Request) (*http.Response, error) {
			if err := req.ParseMultipartForm(1 << 20); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"message":"bad form"}`), nil
			}
			f, header, err := req.FormFile("image")
			if err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"message":"no file"}`), nil
			}
			data, _ := io.ReadAll(f)
			body := `{"id":"n1","name":"` + req.FormValue("name") + `","image_url":"http://files/` + header.Filename +
				`","categories":["` + strings.Join(req.MultipartForm.Value["categories"], `","`) + `"],"likes":` +
				map[bool]string{true: "1", false: "0"}[string(data) == "pixels"] +
				`,"created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-01T10:00:00Z"}`
			return httpmock.NewStringResponse(http.StatusCreated, body), nil
		})

	var progress []float64
	rec, err := c.CreateImage(context.Background(), domain.CreateImageInput{
		Name:       "Glitter",
		Categories: []string{"Gel", "Đính đá"},
		Filename:   "glitter.jpg",
		File:       strings.NewReader("pixels"),
	}, domain.ProgressFunc(func(p float64) { progress = append(progress, p) }))
	require.NoError(t, err)

	assert.Equal(t, "n1", rec.ID)
	assert.Equal(t, "Glitter", rec.Name)
	assert.Equal(t, "http://files/glitter.jpg", rec.ImageURL)
	assert.Equal(t, []string{"Gel", "Đính đá"}, rec.Categories)
	assert.Equal(t, int64(1), rec.Likes)
	require.NotEmpty(t, progress)
	assert.Equal(t, 100.0, progress[len(progress)-1])
}

func TestClient_CreateImageRequiresFile(t *testing.T) {
	c := setupMock(t)

	_, err := c.CreateImage(context.Background(), domain.CreateImageInput{Name: "x"}, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestClient_Categories(t *testing.T) {
	c := setupMock(t)
	httpmock.RegisterResponder(http.MethodGet, apiURL+"/categories",
		httpmock.NewStringResponder(http.StatusOK, `{"categories":["Gel","French"]}`))

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Gel", "French"}, cats)
}

func TestClient_DrivesGallery(t *testing.T) {
	c := setupMock(t)
	httpmock.RegisterResponder(http.MethodGet, apiURL+"/images", httpmock.NewStringResponder(http.StatusOK, pageBody))
	httpmock.RegisterResponder(http.MethodPost, apiURL+"/images/b/like", httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	g := New(c, c, nil, 10)
	require.NoError(t, g.Mount(context.Background()))
	require.Error(t, g.Like(context.Background(), "b"))

	snap := g.Snapshot()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, int64(5), snap.Records[0].Likes)
	assert.Equal(t, StateIdle, snap.State)
}
