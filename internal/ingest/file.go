package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"brainbolt/internal/domain"
)

// MaxImageBytes bounds image files read from disk.
const MaxImageBytes = 20 << 20

// TextFile loads plain text and markdown. Form feeds split pages.
type TextFile struct{}

func (TextFile) Load(_ context.Context, path string) (domain.Bag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Bag{}, err
	}
	bag := domain.Bag{Source: filepath.Base(path)}
	for i, page := range strings.Split(string(data), "\f") {
		bag.TextPages = append(bag.TextPages, domain.TextPage{Text: page, Page: i + 1})
	}
	return bag, nil
}

// PDF extracts plain text page by page. Embedded images are not extracted.
type PDF struct{}

func (PDF) Load(_ context.Context, path string) (domain.Bag, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return domain.Bag{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	bag := domain.Bag{Source: filepath.Base(path)}
	for i := 1; i <= rdr.NumPage(); i++ {
		p := rdr.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return domain.Bag{}, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		bag.TextPages = append(bag.TextPages, domain.TextPage{Text: text, Page: i})
	}
	return bag, nil
}

// ImageFile loads a single image as page 1.
type ImageFile struct{}

func (ImageFile) Load(_ context.Context, path string) (domain.Bag, error) {
	st, err := os.Stat(path)
	if err != nil {
		return domain.Bag{}, err
	}
	if st.Size() > MaxImageBytes {
		return domain.Bag{}, fmt.Errorf("image %s is %d bytes, limit is %d", path, st.Size(), MaxImageBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Bag{}, err
	}
	name := filepath.Base(path)
	return domain.Bag{Source: name, Images: []domain.ImageItem{{Data: data, Page: 1, ID: name}}}, nil
}
