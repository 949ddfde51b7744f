package printer

import (
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Encoder переводит текст чека в байты для принтера.
type Encoder func(text string) ([]byte, error)

// NewEncoder возвращает кодировщик по метке ("utf-8", "cp437", "windows-1251"...).
// Символы, которых нет в кодовой странице, заменяются.
func NewEncoder(label string) (Encoder, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return func(text string) ([]byte, error) { return []byte(text), nil }, nil
	}

	enc, name := charset.Lookup(label)
	if enc == nil {
		// cp437 и другие кодовые страницы принтеров есть только в реестре IANA.
		var err error
		enc, err = ianaindex.IANA.Encoding(label)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("unknown printer encoding %q", label)
		}
		name = strings.ToLower(label)
	}
	if name == "utf-8" {
		return func(text string) ([]byte, error) { return []byte(text), nil }, nil
	}

	return func(text string) ([]byte, error) {
		out, _, err := transform.Bytes(encoding.ReplaceUnsupported(enc.NewEncoder()), []byte(text))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		return out, nil
	}, nil
}
