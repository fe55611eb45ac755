package domain

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Cursor identifies the last record of a page in gallery order.
type Cursor struct {
	UpdatedAt time.Time
	ID        string
}

func CursorOf(r *ImageRecord) Cursor {
	return Cursor{UpdatedAt: r.UpdatedAt, ID: r.ID}
}

// EncodeCursor turns a position into an opaque resume token.
func EncodeCursor(c Cursor) string {
	raw := strconv.FormatInt(c.UpdatedAt.UnixNano(), 10) + ":" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, Validationf("malformed cursor")
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return Cursor{}, Validationf("malformed cursor")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, Validationf("malformed cursor")
	}
	return Cursor{UpdatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}
