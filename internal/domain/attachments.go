package domain

import (
	"encoding/json"
	"strings"
)

// ParseAttachmentURLs decodes the stored attachment column. The column holds either a
// JSON array of URLs or a single legacy URL; anything that fails to decode as an array
// is returned as a one-element list.
func ParseAttachmentURLs(raw *string) []string {
	if raw == nil {
		return []string{}
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return []string{}
	}
	if strings.HasPrefix(value, "[") {
		var urls []string
		if err := json.Unmarshal([]byte(value), &urls); err == nil {
			return compactURLs(urls)
		}
	}
	return []string{value}
}

// EncodeAttachmentURLs produces the stored form. An empty list is stored as NULL.
func EncodeAttachmentURLs(urls []string) *string {
	urls = compactURLs(urls)
	if len(urls) == 0 {
		return nil
	}
	encoded, _ := json.Marshal(urls)
	s := string(encoded)
	return &s
}

func compactURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
