package provider

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Task result payloads vary between relay providers. Extractors are tried
// in a fixed priority order; the first match wins.
//
//  1. resultJson: a JSON-encoded string holding {"resultUrls": [...]}
//  2. a direct URL field: imageUrl, image_url, url, image
//  3. output: a string, an array of strings, or objects with a url field
type extractor struct {
	name string
	fn   func(map[string]any) (string, bool)
}

var resultExtractors = []extractor{
	{"resultJson", extractResultJSON},
	{"direct", extractDirectField},
	{"output", extractOutput},
}

// ExtractImageURL resolves the result image URL from a task payload.
// The error for an unrecognized shape names the keys present so new
// provider formats can be diagnosed from logs.
func ExtractImageURL(payload map[string]any) (string, error) {
	for _, ex := range resultExtractors {
		if url, ok := ex.fn(payload); ok {
			return url, nil
		}
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "", fmt.Errorf("no image URL in task result (keys: %s)", strings.Join(keys, ", "))
}

func extractResultJSON(payload map[string]any) (string, bool) {
	raw, ok := payload["resultJson"].(string)
	if !ok || raw == "" {
		return "", false
	}

	var result struct {
		ResultUrls []string `json:"resultUrls"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", false
	}
	for _, u := range result.ResultUrls {
		if u != "" {
			return u, true
		}
	}
	return "", false
}

func extractDirectField(payload map[string]any) (string, bool) {
	for _, key := range []string{"imageUrl", "image_url", "url", "image"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func extractOutput(payload map[string]any) (string, bool) {
	switch v := payload["output"].(type) {
	case string:
		if v != "" {
			return v, true
		}
	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case string:
				if it != "" {
					return it, true
				}
			case map[string]any:
				if s, ok := it["url"].(string); ok && s != "" {
					return s, true
				}
			}
		}
	case map[string]any:
		if s, ok := v["url"].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
