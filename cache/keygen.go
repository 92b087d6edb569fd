package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// keyLength is the number of hex characters kept from the digest.
const keyLength = 16

// Canonical serializes params with sorted keys and fixed number formatting,
// so insertion order never changes the result.
func Canonical(params Params) (string, error) {
	if params == nil {
		params = Params{}
	}
	for k, v := range params {
		if !primitive(v) {
			return "", fmt.Errorf("cache param %q: unsupported type %T", k, v)
		}
	}
	// encoding/json writes map keys in sorted order
	b, err := json.Marshal(map[string]any(params))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// KeyFor derives the entry key: a truncated SHA-256 of "category:canonical".
func KeyFor(category Category, params Params) (string, error) {
	canon, err := Canonical(params)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(string(category) + ":" + canon))
	return hex.EncodeToString(sum[:])[:keyLength], nil
}

// FileName returns "{category}_{key}.cache".
func FileName(category Category, key string) string {
	return string(category) + "_" + key + ".cache"
}

// categoryOf recovers the category from a cache file name.
func categoryOf(name string) (Category, bool) {
	if !strings.HasSuffix(name, ".cache") {
		return "", false
	}
	i := strings.LastIndex(name, "_")
	if i <= 0 {
		return "", false
	}
	return Category(name[:i]), true
}

func primitive(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}
