// Package commands is the static table of rippled commands the client knows
// about: which response field holds a paginated command's items, and what
// request/response shape each command uses.
package commands

// Command is a rippled command name.
type Command string

// Known commands.
const (
	AccountChannels Command = "account_channels"
	AccountInfo     Command = "account_info"
	AccountLines    Command = "account_lines"
	AccountObjects  Command = "account_objects"
	AccountOffers   Command = "account_offers"
	AccountTx       Command = "account_tx"
	BookOffers      Command = "book_offers"
	Fee             Command = "fee"
	Ledger          Command = "ledger"
	LedgerData      Command = "ledger_data"
	ServerInfo      Command = "server_info"
	Subscribe       Command = "subscribe"
)

// String implements fmt.Stringer.
func (c Command) String() string {
	return string(c)
}

// Shape tags the request/response contract of a command.
type Shape int

const (
	// ShapeAccount is an account-scoped query keyed by "account".
	ShapeAccount Shape = iota + 1

	// ShapeBook is an order book query keyed by taker_gets/taker_pays.
	ShapeBook

	// ShapeLedger is a ledger-scoped query.
	ShapeLedger

	// ShapeServer is a server status query with no ledger selector.
	ShapeServer
)

// Descriptor describes one command.
type Descriptor struct {
	// CollectKey is the response field holding the item sequence of a
	// paginated command. Empty for commands that do not paginate.
	CollectKey string

	// Shape is the request/response contract tag.
	Shape Shape

	// Cacheable marks responses that are immutable once pinned to a
	// concrete validated ledger index.
	Cacheable bool
}

// Paginated reports whether the command pages its results with a marker.
func (d Descriptor) Paginated() bool {
	return d.CollectKey != ""
}

var table = map[Command]Descriptor{
	AccountChannels: {CollectKey: "channels", Shape: ShapeAccount, Cacheable: true},
	AccountInfo:     {Shape: ShapeAccount, Cacheable: true},
	AccountLines:    {CollectKey: "lines", Shape: ShapeAccount, Cacheable: true},
	AccountObjects:  {CollectKey: "account_objects", Shape: ShapeAccount, Cacheable: true},
	AccountOffers:   {CollectKey: "offers", Shape: ShapeAccount, Cacheable: true},
	AccountTx:       {CollectKey: "transactions", Shape: ShapeAccount},
	BookOffers:      {CollectKey: "offers", Shape: ShapeBook, Cacheable: true},
	Fee:             {Shape: ShapeServer},
	Ledger:          {Shape: ShapeLedger, Cacheable: true},
	LedgerData:      {CollectKey: "state", Shape: ShapeLedger, Cacheable: true},
	ServerInfo:      {Shape: ShapeServer},
	Subscribe:       {Shape: ShapeServer},
}

// Lookup returns the descriptor for a command.
func Lookup(c Command) (Descriptor, bool) {
	d, ok := table[c]
	return d, ok
}

// CollectKey returns the collect key of a paginated command.
func CollectKey(c Command) (string, bool) {
	d, ok := table[c]
	if !ok || d.CollectKey == "" {
		return "", false
	}
	return d.CollectKey, true
}

// Parse converts a wire command name to a known Command.
func Parse(name string) (Command, bool) {
	c := Command(name)
	_, ok := table[c]
	return c, ok
}
