package store

import "encoding/json"

// encodeStringMap serializes a string map for storage in a TEXT column. A
// nil map encodes as an empty object so reads never need a null check.
func encodeStringMap(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStringMap(s string) (map[string]string, error) {
	if s == "" {
		return map[string]string{}, nil
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
