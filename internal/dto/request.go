package dto

import (
	"strings"

	"github.com/nghiemng0310/nail/internal/helpers"
)

// ImageForm is the multipart body of create and update requests. The image
// file itself is read separately from the "image" field.
type ImageForm struct {
	Name       string   `form:"name"`
	Categories []string `form:"categories"`
}

// CategoryList flattens repeated fields and comma-separated values into one list.
func (f *ImageForm) CategoryList() []string {
	return SplitCategories(f.Categories)
}

// SplitCategories accepts both "categories=a&categories=b" and "categories=a,b".
func SplitCategories(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.Contains(v, ",") {
			out = append(out, helpers.SplitAndTrim(v, ",")...)
			continue
		}
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// BlobCleanupTask asks the worker to remove a blob that could not be deleted inline.
type BlobCleanupTask struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}
