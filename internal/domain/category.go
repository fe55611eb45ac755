package domain

import "strings"

// Categories is the closed vocabulary shared by the write path and the filter UI.
var Categories = []string{
	"Móng tay",
	"Móng chân",
	"Nail Art",
	"French",
	"Ombre",
	"Gel",
	"Acrylic",
	"Đính đá",
	"Hoa văn",
	"Gradient",
	"Màu sắc",
	"Thiết kế 3D",
	"Minimalist",
	"Cưới",
	"Lễ hội",
	"Khác",
}

var categorySet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		m[c] = struct{}{}
	}
	return m
}()

func IsCategory(label string) bool {
	_, ok := categorySet[label]
	return ok
}

// NormalizeCategories trims labels, drops blanks and duplicates while keeping
// the caller's order, and rejects anything outside the vocabulary.
func NormalizeCategories(labels []string) ([]string, error) {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if !IsCategory(l) {
			return nil, Validationf("unknown category %q", l)
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out, nil
}
