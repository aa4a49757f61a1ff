package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CacheKey identifies a cached response.
type CacheKey struct {
	// Command is the rippled command name.
	Command string

	// LedgerIndex is the validated ledger the response is pinned to.
	LedgerIndex int64

	// Params are the request parameters other than command, id and
	// ledger_index.
	Params map[string]any
}

// String generates a deterministic cache key string.
// Format: xrpl:command:ledger=N:param1=json1:param2=json2
//
// Example:
//
//	xrpl:account_info:ledger=80000000:account="rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"
func (k CacheKey) String() string {
	parts := []string{"xrpl", k.Command, fmt.Sprintf("ledger=%d", k.LedgerIndex)}

	keys := make([]string, 0, len(k.Params))
	for name := range k.Params {
		switch name {
		case "command", "id", "ledger_index":
			continue
		}
		keys = append(keys, name)
	}
	sort.Strings(keys)

	for _, name := range keys {
		// encoding/json sorts map keys, so nested objects are stable too.
		value, err := json.Marshal(k.Params[name])
		if err != nil {
			value = []byte(fmt.Sprintf("%v", k.Params[name]))
		}
		parts = append(parts, name+"="+string(value))
	}

	return strings.Join(parts, ":")
}
