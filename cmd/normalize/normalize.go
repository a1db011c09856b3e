package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"tradesim/src/model"
	"tradesim/src/normalizer"
)

// Run reads one raw order or an array of raw orders and writes their
// canonical form. Any invalid order fails the whole run.
func Run(in io.Reader, out io.Writer, ltp decimal.NullDecimal, tickSize decimal.Decimal) error {
	payload, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty input", normalizer.ErrValidation)
	}

	var raws []json.RawMessage
	single := payload[0] != '['
	if single {
		raws = []json.RawMessage{payload}
	} else if err := json.Unmarshal(payload, &raws); err != nil {
		return fmt.Errorf("%w: %v", normalizer.ErrValidation, err)
	}

	orders := make([]model.Order, 0, len(raws))
	for i, raw := range raws {
		fields, err := normalizer.DecodeFields(raw)
		if err != nil {
			return fmt.Errorf("%w: order %d is not a JSON object", normalizer.ErrValidation, i)
		}
		orderLTP := ltp
		if own := fields.Decimal("ltp", "last_price", "lastPrice"); own.Valid {
			orderLTP = own
		}
		order, err := normalizer.Normalize(normalizer.RawOrderFromFields(fields), orderLTP, tickSize)
		if err != nil {
			return fmt.Errorf("order %d: %w", i, err)
		}
		orders = append(orders, order)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if single {
		return enc.Encode(orders[0])
	}
	return enc.Encode(orders)
}
