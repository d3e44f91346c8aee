package extraction

import (
	"bytes"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"visareview/internal"
)

// ReadPages returns the text of every non-blank page, 1-based, plus the
// total page count. Pages that fail to decode are skipped.
func ReadPages(content []byte) ([]internal.PageText, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	out := []internal.PageText{}
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, internal.PageText{PageNumber: i, Text: text})
	}
	return out, total, nil
}
