package evaluator

import (
	"encoding/json"
	"fmt"
	"sort"
)

func decodeString(raw json.RawMessage) (string, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("expected a JSON string: %w", err)
	}
	return value, nil
}

func decodeStringSlice(raw json.RawMessage) ([]string, error) {
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("expected a JSON array of strings: %w", err)
	}
	return values, nil
}

func decodeStringMap(raw json.RawMessage) (map[string]string, error) {
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("expected a JSON object of string values: %w", err)
	}
	return values, nil
}

// decodeVariants accepts either a single string or an array of acceptable
// strings, the two shapes used for canonical answers of scalar types.
func decodeVariants(raw json.RawMessage) ([]string, error) {
	if single, err := decodeString(raw); err == nil {
		return []string{single}, nil
	}
	return decodeStringSlice(raw)
}

// decodeVariantMap accepts canonical answers for keyed types: each key maps
// to one acceptable string or to an array of acceptable variants.
func decodeVariantMap(raw json.RawMessage) (map[string][]string, error) {
	var flexible map[string]json.RawMessage
	if err := json.Unmarshal(raw, &flexible); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}

	result := make(map[string][]string, len(flexible))
	for key, value := range flexible {
		variants, err := decodeVariants(value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		result[key] = variants
	}

	return result, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
