package client

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/xrpl-client/internal/testutil"
	"github.com/Sternrassler/xrpl-client/pkg/apierrors"
	"github.com/Sternrassler/xrpl-client/pkg/commands"
	"github.com/Sternrassler/xrpl-client/pkg/pagination"
	"github.com/Sternrassler/xrpl-client/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestClient returns a client over a mock channel whose handshake
// reported version (skipped when version is 0).
func newTestClient(t *testing.T, handler testutil.Handler, version int64) (*Client, *testutil.MockChannel) {
	t.Helper()

	ch := testutil.NewMockChannel(handler)
	c, err := New(ch, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	if version > 0 {
		ch.Emit(transport.Event{Type: transport.EventConnected, LedgerVersion: version})
		waitForLedgerVersion(t, c, version)
	}
	return c, ch
}

func waitForLedgerVersion(t *testing.T, c *Client, want int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.ledgerVersion.Load() == want
	}, time.Second, 5*time.Millisecond, "ledger version never became %d", want)
}

func echo(req transport.Request) (transport.Response, error) {
	return transport.Response{"echo": map[string]any(req)}, nil
}

func TestNew_NilChannel(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.EqualError(t, err, "transport channel is required")
}

func TestRequest_GuardForwards(t *testing.T) {
	tests := []struct {
		name     string
		selector any
	}{
		{name: "no selector"},
		{name: "validated sentinel", selector: "validated"},
		{name: "equal to known", selector: 1000},
		{name: "below known", selector: 999},
		{name: "zero", selector: 0},
		{name: "int64 below known", selector: int64(500)},
		{name: "integral float from json", selector: float64(1000)},
		{name: "json number", selector: json.Number("10")},
		{name: "uint", selector: uint(50)},
		{name: "int8", selector: int8(50)},
		{name: "int16", selector: int16(50)},
		{name: "uint8", selector: uint8(50)},
		{name: "uint16", selector: uint16(50)},
		{name: "float32", selector: float32(50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ch := newTestClient(t, echo, 1000)

			params := map[string]any{"account": "rA"}
			if tt.selector != nil {
				params["ledger_index"] = tt.selector
			}

			resp, err := c.Request(context.Background(), commands.AccountInfo, params, 0)
			require.NoError(t, err)
			require.Equal(t, 1, ch.RequestCount())

			sent := ch.Requests()[0]
			assert.Equal(t, "account_info", sent["command"])
			assert.Equal(t, "rA", sent["account"])
			if tt.selector != nil {
				assert.Equal(t, tt.selector, sent["ledger_index"])
			} else {
				assert.NotContains(t, sent, "ledger_index")
			}
			assert.NotNil(t, resp["echo"])
		})
	}
}

func TestRequest_GuardRejects(t *testing.T) {
	tests := []struct {
		name     string
		known    int64
		selector any
	}{
		{name: "one above known", known: 1000, selector: 1001},
		{name: "far above known", known: 1000, selector: int64(5_000_000)},
		{name: "unknown version", known: 0, selector: 1},
		{name: "current is not a number", known: 1000, selector: "current"},
		{name: "closed is not a number", known: 1000, selector: "closed"},
		{name: "numeric string", known: 1000, selector: "10"},
		{name: "negative", known: 1000, selector: -1},
		{name: "fractional", known: 1000, selector: 10.5},
		{name: "bool", known: 1000, selector: true},
		{name: "float rounding to 2^63", known: 100, selector: float64(math.MaxInt64)},
		{name: "uint64 beyond int64", known: 100, selector: uint64(math.MaxUint64)},
		{name: "uint16 above known", known: 100, selector: uint16(101)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ch := newTestClient(t, echo, tt.known)

			_, err := c.Request(context.Background(), commands.AccountInfo, map[string]any{
				"account":      "rA",
				"ledger_index": tt.selector,
			}, 0)

			var lerr *apierrors.LedgerVersionError
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, tt.selector, lerr.Requested)
			assert.Equal(t, tt.known, lerr.Known)
			assert.Zero(t, ch.RequestCount(), "rejected request must not reach the channel")
			assert.Equal(t, ErrorClassLedgerVersion, ClassifyError(err))
		})
	}
}

func TestRequest_TimeoutAndErrorPassThrough(t *testing.T) {
	wireErr := &transport.Error{Kind: transport.KindResponse, Code: "actNotFound", Message: "Account not found."}
	c, ch := newTestClient(t, func(transport.Request) (transport.Response, error) {
		return nil, wireErr
	}, 10)

	_, err := c.Request(context.Background(), commands.AccountInfo, map[string]any{"account": "rA"}, 3*time.Second)

	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Same(t, wireErr, terr)
	assert.Equal(t, []time.Duration{3 * time.Second}, ch.Timeouts())
	assert.Equal(t, ErrorClassResponse, ClassifyError(err))
}

func TestRequest_DoesNotMutateParams(t *testing.T) {
	c, _ := newTestClient(t, echo, 10)
	params := map[string]any{"account": "rA"}

	_, err := c.Request(context.Background(), commands.AccountInfo, params, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"account": "rA"}, params)
}

func TestLifecycle_LedgerVersion(t *testing.T) {
	c, ch := newTestClient(t, echo, 0)

	_, err := c.LedgerVersion()
	assert.ErrorIs(t, err, apierrors.ErrNoLedgerVersion)
	assert.False(t, c.IsConnected())

	ch.Emit(transport.Event{Type: transport.EventConnected, LedgerVersion: 100})
	waitForLedgerVersion(t, c, 100)
	assert.True(t, c.IsConnected())

	ch.Emit(transport.Event{Type: transport.EventLedgerClosed, LedgerVersion: 101})
	waitForLedgerVersion(t, c, 101)

	// A stale stream message never lowers the known version.
	ch.Emit(transport.Event{Type: transport.EventLedgerClosed, LedgerVersion: 99})
	ch.Emit(transport.Event{Type: transport.EventLedgerClosed, LedgerVersion: 102})
	waitForLedgerVersion(t, c, 102)

	v, err := c.LedgerVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(102), v)

	ch.Emit(transport.Event{Type: transport.EventDisconnected, Code: transport.CloseAbnormal})
	waitForLedgerVersion(t, c, 0)
	assert.False(t, c.IsConnected())

	// Reconnection starts over from the new handshake.
	ch.Emit(transport.Event{Type: transport.EventConnected, LedgerVersion: 90})
	waitForLedgerVersion(t, c, 90)
}

func TestLifecycle_GuardFollowsLedgerClosed(t *testing.T) {
	c, ch := newTestClient(t, echo, 100)
	params := map[string]any{"account": "rA", "ledger_index": 101}

	_, err := c.Request(context.Background(), commands.AccountInfo, params, 0)
	require.True(t, apierrors.IsLedgerVersion(err))

	ch.Emit(transport.Event{Type: transport.EventLedgerClosed, LedgerVersion: 101})
	waitForLedgerVersion(t, c, 101)

	_, err = c.Request(context.Background(), commands.AccountInfo, params, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.RequestCount())
}

func TestSubscribe(t *testing.T) {
	c, ch := newTestClient(t, echo, 0)

	var (
		mu  sync.Mutex
		got []transport.EventType
	)
	unsubscribe := c.Subscribe(func(ev transport.Event) {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
	})

	ch.Emit(transport.Event{Type: transport.EventConnected, LedgerVersion: 5})
	ch.Emit(transport.Event{Type: transport.EventLedgerClosed, LedgerVersion: 6})
	ch.Emit(transport.Event{Type: transport.EventError, ErrorCode: "badMessage"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)

	unsubscribe()
	ch.Emit(transport.Event{Type: transport.EventDisconnected})
	waitForLedgerVersion(t, c, 0)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []transport.EventType{
		transport.EventConnected,
		transport.EventLedgerClosed,
		transport.EventError,
	}, got)
}

func TestRequestAll_AccountOffersScenario(t *testing.T) {
	offers := func(n int) []any {
		out := make([]any, n)
		for i := range out {
			out[i] = map[string]any{"seq": float64(i + 1)}
		}
		return out
	}

	c, ch := newTestClient(t, func(req transport.Request) (transport.Response, error) {
		if req["marker"] == nil {
			return transport.Response{"offers": offers(20), "marker": "m1"}, nil
		}
		return transport.Response{"offers": offers(5)}, nil
	}, 1000)

	pages, err := c.RequestAll(context.Background(), commands.AccountOffers, map[string]any{
		"account":      "rA",
		"ledger_index": 1000,
		"limit":        25,
	}, pagination.Options{})
	require.NoError(t, err)

	require.Equal(t, 2, ch.RequestCount())
	second := ch.Requests()[1]
	assert.EqualValues(t, 5, second["limit"])
	assert.Equal(t, "m1", second["marker"])
	assert.Equal(t, 1000, second["ledger_index"])

	require.Len(t, pages, 2)
	total := len(pages[0]["offers"].([]any)) + len(pages[1]["offers"].([]any))
	assert.Equal(t, 25, total)
}

func TestRequestAll_GuardRejectsBeforeFirstPage(t *testing.T) {
	c, ch := newTestClient(t, testutil.PagedServer("offers", 100, 10), 50)

	pages, err := c.RequestAll(context.Background(), commands.AccountOffers, map[string]any{
		"account":      "rA",
		"ledger_index": 51,
		"limit":        30,
	}, pagination.Options{})

	assert.Nil(t, pages)
	assert.True(t, apierrors.IsLedgerVersion(err))
	assert.Zero(t, ch.RequestCount())
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: apierrors.Validationf("bad"), want: ErrorClassValidation},
		{name: "ledger version", err: &apierrors.LedgerVersionError{Requested: 5, Known: 1}, want: ErrorClassLedgerVersion},
		{name: "connection", err: &transport.Error{Kind: transport.KindConnection}, want: ErrorClassConnection},
		{name: "protocol", err: &transport.Error{Kind: transport.KindProtocol}, want: ErrorClassProtocol},
		{name: "response", err: &transport.Error{Kind: transport.KindResponse, Code: "actNotFound"}, want: ErrorClassResponse},
		{name: "slowDown", err: &transport.Error{Kind: transport.KindResponse, Code: "slowDown"}, want: ErrorClassRateLimit},
		{name: "cancelled", err: context.Canceled, want: ErrorClassUnknown},
		{name: "wrapped", err: errors.Join(errors.New("outer"), &transport.Error{Kind: transport.KindProtocol}), want: ErrorClassProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}
