package collector

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeBody wraps body in a UTF-8 decoder. A configured encoding label
// ("big5", "utf-8") wins; otherwise the charset is taken from the
// Content-Type header, a BOM or a <meta> tag.
func decodeBody(body io.Reader, encoding, contentType string) (io.Reader, error) {
	if label := strings.TrimSpace(encoding); label != "" {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
		}
		return enc.NewDecoder().Reader(body), nil
	}
	r, err := charset.NewReader(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	return r, nil
}
