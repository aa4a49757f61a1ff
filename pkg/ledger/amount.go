package ledger

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/Sternrassler/xrpl-client/pkg/apierrors"
	"github.com/go-playground/validator/v10"
)

// XRP is the currency code of the native asset.
const XRP = "XRP"

var dropsPerXRP = big.NewInt(1_000_000)

// Amount is an XRP or issued-currency amount. Value is a decimal string;
// XRP values are in XRP, not drops.
type Amount struct {
	Currency     string `json:"currency"`
	Counterparty string `json:"counterparty,omitempty"`
	Value        string `json:"value"`
}

// Issue names an asset without an amount.
type Issue struct {
	Currency     string `json:"currency" validate:"required,xrpl_currency"`
	Counterparty string `json:"counterparty,omitempty" validate:"omitempty,xrpl_address"`
}

// validateIssue requires a counterparty on issued currencies and forbids
// one on XRP.
func validateIssue(sl validator.StructLevel) {
	issue := sl.Current().Interface().(Issue)
	switch {
	case issue.Currency == XRP && issue.Counterparty != "":
		sl.ReportError(issue.Counterparty, "Counterparty", "counterparty", "excluded_with_xrp", "")
	case issue.Currency != XRP && issue.Counterparty == "":
		sl.ReportError(issue.Counterparty, "Counterparty", "counterparty", "required", "")
	}
}

func (i Issue) wire() map[string]any {
	out := map[string]any{"currency": i.Currency}
	if i.Counterparty != "" {
		out["issuer"] = i.Counterparty
	}
	return out
}

// DropsToXRP converts an integer drops string to an XRP decimal string
// without trailing zeros, e.g. "1234500" to "1.2345".
func DropsToXRP(drops string) (string, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(drops), 10)
	if !ok {
		return "", apierrors.Validationf("drops must be an integer string, got %q", drops)
	}

	value := new(big.Rat).SetFrac(n, dropsPerXRP).FloatString(6)
	if strings.Contains(value, ".") {
		value = strings.TrimRight(value, "0")
		value = strings.TrimSuffix(value, ".")
	}
	if value == "-0" {
		value = "0"
	}
	return value, nil
}

// wireAmount decodes the two amount encodings used by rippled: a drops
// string for XRP, or a {currency, issuer, value} object.
type wireAmount Amount

func (a *wireAmount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var drops string
		if err := json.Unmarshal(data, &drops); err != nil {
			return err
		}
		value, err := DropsToXRP(drops)
		if err != nil {
			return err
		}
		*a = wireAmount{Currency: XRP, Value: value}
		return nil
	}

	var obj struct {
		Currency string `json:"currency"`
		Issuer   string `json:"issuer"`
		Value    string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = wireAmount{Currency: obj.Currency, Counterparty: obj.Issuer, Value: obj.Value}
	return nil
}
