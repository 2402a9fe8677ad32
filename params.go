package alsahal

import (
	"sort"
	"strings"
)

// Parameter keys understood on the key-value channel.
const (
	ParamRouting     = "routing"
	ParamScreenState = "screen_state"
)

// parseParams splits "k=v;k=v" into a map. Keys without '=' map to an empty value.
func parseParams(kv string) map[string]string {
	params := make(map[string]string)

	for _, pair := range strings.Split(kv, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		k, v, _ := strings.Cut(pair, "=")
		params[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return params
}

// formatParams joins a map back into "k=v;k=v" with sorted keys.
func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}

	return strings.Join(parts, ";")
}

// requested reports whether key is among the keys of a GetParameters query.
func requested(keys, key string) bool {
	_, ok := parseParams(keys)[key]

	return ok
}
