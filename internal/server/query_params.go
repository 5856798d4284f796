package server

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

const maxListLimit = 200

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseFormBool(value string) (bool, error) {
	parsed, err := parseOptionalBool(value)
	if err != nil || parsed == nil {
		return false, err
	}
	return *parsed, nil
}

func parseLimit(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 0 {
		return 0, errors.New("invalid_limit")
	}
	if parsed > maxListLimit {
		parsed = maxListLimit
	}
	return parsed, nil
}

// parseList accepts repeated fields and comma separated values.
func parseList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

// parseExistingImages decodes a JSON array of strings and nulls. Nulls become
// empty slots.
func parseExistingImages(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var entries []*string
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, entry := range entries {
		if entry != nil {
			out[i] = strings.TrimSpace(*entry)
		}
	}
	return out, nil
}

func optionalText(value string, present bool) *string {
	if !present {
		return nil
	}
	return &value
}
