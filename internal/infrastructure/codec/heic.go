package codec

import (
	"bytes"
	"path/filepath"
	"strings"
)

var heicBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heim"), []byte("heis"), []byte("mif1"), []byte("msf1"),
}

// IsHEIC reports whether the upload is a HEIC/HEIF container, by its ftyp box
// or, failing that, by the file extension.
func IsHEIC(data []byte, filename string) bool {
	if len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")) {
		brand := data[8:12]
		for _, b := range heicBrands {
			if bytes.Equal(brand, b) {
				return true
			}
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".heic", ".heif":
		return true
	}
	return false
}
