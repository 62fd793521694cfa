package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Fingerprint derives a stable cache key from a request shape. Parameter
// order never changes the key; two requests differing only in param order
// share one cache slot.
func Fingerprint(method, rawURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([][2]string, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, [2]string{k, params[k]})
	}

	payload, _ := json.Marshal(struct {
		Method string      `json:"method"`
		URL    string      `json:"url"`
		Params [][2]string `json:"params"`
	}{
		Method: strings.ToUpper(method),
		URL:    rawURL,
		Params: ordered,
	})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
