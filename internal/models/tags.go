package models

import (
	"bytes"
	"encoding/json"
)

// Tags is an ordered tag list that decodes leniently: a JSON array of strings, or a JSON string
// holding such an array (legacy payloads). Anything else decodes to an empty list.
type Tags []string

// UnmarshalJSON never fails; malformed input yields an empty list.
func (t *Tags) UnmarshalJSON(data []byte) error {
	*t = ParseTags(data)

	return nil
}

// ParseTags parses stored tag data. Malformed, null or non-string entries produce an empty list.
func ParseTags(data []byte) []string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []string{}
	}

	// Legacy rows hold the array encoded as a JSON string: "[\"a\",\"b\"]".
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return []string{}
		}

		data = bytes.TrimSpace([]byte(inner))
	}

	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil || tags == nil {
		return []string{}
	}

	return tags
}

// TagSet builds a set from a tag list.
func TagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}

	return set
}

// SharedTagCount counts the distinct tags of candidate present in set.
func SharedTagCount(set map[string]struct{}, candidate []string) int {
	if len(set) == 0 || len(candidate) == 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(candidate))
	count := 0

	for _, tag := range candidate {
		if _, dup := seen[tag]; dup {
			continue
		}

		seen[tag] = struct{}{}

		if _, ok := set[tag]; ok {
			count++
		}
	}

	return count
}
