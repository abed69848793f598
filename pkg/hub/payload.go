package hub

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Hub payloads are server-defined and arrive with inconsistent key casing
// ("productId", "ProductID", "product_id" have all been observed). Payload
// gives reducers a single place to read fields through prioritized alias
// lists with case-insensitive matching, returning typed-or-absent results
// instead of ad hoc map lookups.

// Event name constants as emitted by the hub.
const (
	EventReceiveNotification = "ReceiveNotification"
	EventPinChanged          = "PinnedProductChanged"
	EventStockChanged        = "StockChanged"
	EventProductAdded        = "ProductAdded"
	EventProductRemoved      = "ProductRemoved"
	EventLivestreamUpdated   = "LivestreamUpdated"
)

// Payload is a decoded hub event body with folded-key access.
type Payload struct {
	fields map[string]any
}

// ParsePayload decodes a JSON object into a Payload. Non-object bodies are
// an error; callers downgrade that to a needs-refetch classification.
func ParsePayload(data []byte) (Payload, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Payload{}, fmt.Errorf("decoding payload: %w", err)
	}
	folded := make(map[string]any, len(raw))
	for k, v := range raw {
		folded[foldKey(k)] = v
	}
	return Payload{fields: folded}, nil
}

// foldKey normalizes a JSON key for comparison: lowercase with separators
// removed, so "product_id", "ProductID" and "productId" all collide.
func foldKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	k = strings.ReplaceAll(k, "-", "")
	return k
}

// lookup returns the first alias present, in priority order.
func (p Payload) lookup(aliases ...string) (any, bool) {
	for _, a := range aliases {
		if v, ok := p.fields[foldKey(a)]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String reads the first present alias as a non-empty string.
func (p Payload) String(aliases ...string) (string, bool) {
	v, ok := p.lookup(aliases...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Float reads the first present alias as a float64. JSON numbers always
// decode to float64; numeric strings are accepted as a fallback.
func (p Payload) Float(aliases ...string) (float64, bool) {
	v, ok := p.lookup(aliases...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Int reads the first present alias as an int.
func (p Payload) Int(aliases ...string) (int, bool) {
	f, ok := p.Float(aliases...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Bool reads the first present alias as a bool.
func (p Payload) Bool(aliases ...string) (bool, bool) {
	v, ok := p.lookup(aliases...)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// decodeFrame splits a raw hub frame into its event name and data body.
// Frames are JSON objects whose envelope keys also vary in casing; a frame
// without a resolvable event name is malformed.
func decodeFrame(raw []byte) (event string, data []byte, err error) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", nil, fmt.Errorf("decoding frame: %w", err)
	}

	folded := make(map[string]json.RawMessage, len(frame))
	for k, v := range frame {
		folded[foldKey(k)] = v
	}

	for _, key := range []string{"event", "type", "method"} {
		rawName, ok := folded[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(rawName, &event); err == nil && event != "" {
			break
		}
		event = ""
	}
	if event == "" {
		return "", nil, fmt.Errorf("frame has no event name")
	}

	for _, key := range []string{"data", "payload", "arguments", "body"} {
		if d, ok := folded[key]; ok {
			return event, d, nil
		}
	}
	// Some events are bare signals with no body.
	return event, nil, nil
}
