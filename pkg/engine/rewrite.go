package engine

import (
	"bytes"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"pulsegate/pkg/model"
)

// emptyObject replaces a singleton response that fails the policy.
var emptyObject = []byte("{}")

// CompositeResult is the outcome of filtering a list of sub-items.
type CompositeResult struct {
	// Kept holds the raw JSON of surviving items, in their original order.
	Kept [][]byte
	// Total is the number of items examined.
	Total int
	// DropWholeMessage is set when nothing survived; the caller must suppress
	// the message instead of emitting an empty content list.
	DropWholeMessage bool
}

// Dropped returns how many items were removed.
func (r CompositeResult) Dropped() int { return r.Total - len(r.Kept) }

// RewriteComposite decodes each item, applies keep to it, and collects the
// original bytes of the items that pass. Items are never re-serialized, so
// rewriting an already rewritten list is a no-op.
func RewriteComposite[R model.Record](items []gjson.Result, decode func(gjson.Result) R, keep func(model.Record) bool) CompositeResult {
	kept := make([][]byte, 0, len(items))
	for _, item := range items {
		if keep(decode(item)) {
			kept = append(kept, []byte(item.Raw))
		}
	}
	return CompositeResult{
		Kept:             kept,
		Total:            len(items),
		DropWholeMessage: len(kept) == 0,
	}
}

// RewriteSingleton decides a single-object response. On false the caller
// substitutes an empty object rather than suppressing the response.
func RewriteSingleton(rec model.Record, keep func(model.Record) bool) bool {
	return keep(rec)
}

// ReplaceContent returns envelope with its "content" field replaced by the
// kept items. Every other field is carried over byte for byte.
func ReplaceContent(envelope []byte, kept [][]byte) ([]byte, error) {
	out, err := sjson.SetRawBytes(envelope, "content", encodeArray(kept))
	if err != nil {
		return nil, fmt.Errorf("failed to replace content: %w", err)
	}
	return out, nil
}

// encodeArray joins raw JSON values into a JSON array.
func encodeArray(items [][]byte) []byte {
	var b bytes.Buffer
	b.WriteByte('[')
	b.Write(bytes.Join(items, []byte(",")))
	b.WriteByte(']')
	return b.Bytes()
}
