package cache

import (
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "command without params",
			key:  CacheKey{Command: "ledger", LedgerIndex: 42},
			want: "xrpl:ledger:ledger=42",
		},
		{
			name: "account param",
			key: CacheKey{
				Command:     "account_info",
				LedgerIndex: 80000000,
				Params:      map[string]any{"account": "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"},
			},
			want: `xrpl:account_info:ledger=80000000:account="rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"`,
		},
		{
			name: "params sorted and wire fields skipped",
			key: CacheKey{
				Command:     "account_offers",
				LedgerIndex: 7,
				Params: map[string]any{
					"limit":        20,
					"account":      "rA",
					"command":      "account_offers",
					"id":           99,
					"ledger_index": 7,
				},
			},
			want: `xrpl:account_offers:ledger=7:account="rA":limit=20`,
		},
		{
			name: "nested marker is stable",
			key: CacheKey{
				Command:     "ledger_data",
				LedgerIndex: 3,
				Params: map[string]any{
					"marker": map[string]any{"ledger": 3, "seq": 10},
				},
			},
			want: `xrpl:ledger_data:ledger=3:marker={"ledger":3,"seq":10}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_String_Deterministic(t *testing.T) {
	key := CacheKey{
		Command:     "book_offers",
		LedgerIndex: 100,
		Params: map[string]any{
			"taker_gets": map[string]any{"currency": "XRP"},
			"taker_pays": map[string]any{"currency": "USD", "issuer": "rB"},
			"limit":      10,
		},
	}

	first := key.String()
	for i := 0; i < 20; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q != %q", got, first)
		}
	}
}
