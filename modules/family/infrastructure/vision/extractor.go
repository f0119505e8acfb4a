// Package vision extracts family records from photographed or exported tree
// diagrams through a multimodal model.
package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

// Extractor returns the people found in an image, each with the name of the
// parent shown above them.
type Extractor interface {
	Extract(ctx context.Context, img Image, branch string) ([]member.ExtractedRecord, error)
	Provider() string
	Model() string
}

type Image struct {
	Name      string
	MediaType string
	Data      []byte
}

var mediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// MediaTypeFor maps an image file name to its media type.
func MediaTypeFor(name string) (string, error) {
	mt, ok := mediaTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", filepath.Ext(name))
	}
	return mt, nil
}

func NewImage(name string, data []byte) (Image, error) {
	mt, err := MediaTypeFor(name)
	if err != nil {
		return Image{}, err
	}
	return Image{Name: filepath.Base(name), MediaType: mt, Data: data}, nil
}

func ImageFromFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}
	return NewImage(path, data)
}
