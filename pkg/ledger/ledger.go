// Package ledger provides typed queries over the version-guarded client.
//
// Each query validates its input, issues one request (or one aggregation for
// list queries) and formats the raw response. Validation failures are
// *apierrors.ValidationError and never reach the network.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Sternrassler/xrpl-client/pkg/apierrors"
	"github.com/Sternrassler/xrpl-client/pkg/commands"
	"github.com/Sternrassler/xrpl-client/pkg/pagination"
	"github.com/Sternrassler/xrpl-client/pkg/transport"
	"github.com/go-playground/validator/v10"
)

// Requester is the subset of *client.Client the queries need.
type Requester interface {
	Request(ctx context.Context, command commands.Command, params map[string]any, timeout time.Duration) (transport.Response, error)
	RequestAll(ctx context.Context, command commands.Command, params map[string]any, opts pagination.Options) ([]transport.Response, error)
	LedgerVersion() (int64, error)
}

// Page limits applied to list queries that take a caller limit.
const (
	MinLimit = 10
	MaxLimit = 400
)

var (
	// Classic addresses: base58 (ripple alphabet), leading 'r'.
	addressPattern = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)

	// Three-character codes other than "XRP", or 160-bit hex codes.
	currencyPattern = regexp.MustCompile(`^([A-Za-z0-9?!@#$%^&*<>(){}\[\]|]{3}|[0-9A-Fa-f]{40})$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("xrpl_address", func(fl validator.FieldLevel) bool {
		return addressPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("xrpl_currency", func(fl validator.FieldLevel) bool {
		return currencyPattern.MatchString(fl.Field().String())
	})
	v.RegisterStructValidation(validateIssue, Issue{})
	return v
}

// validateStruct runs the struct tags of s and converts failures to a
// ValidationError naming the first offending field.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &apierrors.ValidationError{
			Message: fmt.Sprintf("%s failed %q check", fieldName(fe.Namespace()), fe.Tag()),
			Err:     err,
		}
	}
	return &apierrors.ValidationError{Message: "invalid input", Err: err}
}

// fieldName drops the root struct name from a validator namespace.
func fieldName(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// ledgerSelector returns the ledger_index for a request: the explicit
// version when set, else fallback.
func ledgerSelector(version int64, fallback any) any {
	if version > 0 {
		return version
	}
	return fallback
}

// currentLedger returns version when set, else the client's known
// validated ledger.
func currentLedger(r Requester, version int64) (int64, error) {
	if version > 0 {
		return version, nil
	}
	return r.LedgerVersion()
}

// decodeResult converts a raw result object into out.
func decodeResult(resp transport.Response, out any) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &transport.Error{Kind: transport.KindProtocol, Message: "decode result", Err: err}
	}
	return nil
}

// decodeItems decodes the collect-key field of every page into a single
// slice, in page order.
func decodeItems[T any](pages []transport.Response, key string) ([]T, error) {
	var out []T
	for _, page := range pages {
		raw, ok := page[key]
		if !ok || raw == nil {
			continue
		}
		var items []T
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, &transport.Error{Kind: transport.KindProtocol, Message: "decode " + key, Err: err}
		}
		out = append(out, items...)
	}
	return out, nil
}
