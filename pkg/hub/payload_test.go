package hub

import (
	"testing"
)

func TestPayloadAliasAndCaseInsensitiveLookup(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"camelCase", `{"productName":"Mug"}`, "Mug"},
		{"PascalCase", `{"ProductName":"Mug"}`, "Mug"},
		{"snake_case", `{"product_name":"Mug"}`, "Mug"},
		{"alias fallback", `{"name":"Mug"}`, "Mug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.body))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got, ok := p.String("productName", "name")
			if !ok || got != tt.want {
				t.Fatalf("String = %q, %v", got, ok)
			}
		})
	}
}

func TestPayloadAliasPriority(t *testing.T) {
	p, err := ParsePayload([]byte(`{"productName":"primary","name":"secondary"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, ok := p.String("productName", "name")
	if !ok || got != "primary" {
		t.Fatalf("expected the first alias to win, got %q", got)
	}
}

func TestPayloadTypedAbsence(t *testing.T) {
	p, err := ParsePayload([]byte(`{"price":19.5,"stock":7,"isPin":true,"empty":""}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if f, ok := p.Float("price"); !ok || f != 19.5 {
		t.Errorf("Float(price) = %v, %v", f, ok)
	}
	if n, ok := p.Int("stock"); !ok || n != 7 {
		t.Errorf("Int(stock) = %v, %v", n, ok)
	}
	if b, ok := p.Bool("is_pin"); !ok || !b {
		t.Errorf("Bool(is_pin) = %v, %v", b, ok)
	}
	if _, ok := p.String("empty"); ok {
		t.Error("empty string should read as absent")
	}
	if _, ok := p.Float("missing"); ok {
		t.Error("missing key should read as absent")
	}
}

func TestPayloadNumericString(t *testing.T) {
	p, err := ParsePayload([]byte(`{"stock":"12"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n, ok := p.Int("stock"); !ok || n != 12 {
		t.Fatalf("Int from numeric string = %v, %v", n, ok)
	}
}

func TestParsePayloadRejectsNonObject(t *testing.T) {
	if _, err := ParsePayload([]byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected error for non-object payload")
	}
}

func TestDecodeFrameVariants(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantEvent string
		wantData  string
		wantErr   bool
	}{
		{"standard", `{"event":"StockChanged","data":{"stock":1}}`, "StockChanged", `{"stock":1}`, false},
		{"pascal keys", `{"Event":"StockChanged","Data":{"stock":1}}`, "StockChanged", `{"stock":1}`, false},
		{"type alias", `{"type":"ProductAdded","payload":{}}`, "ProductAdded", `{}`, false},
		{"bare signal", `{"event":"LivestreamUpdated"}`, "LivestreamUpdated", "", false},
		{"no event name", `{"data":{}}`, "", "", true},
		{"not json", `garbage`, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, data, err := decodeFrame([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeFrame: %v", err)
			}
			if event != tt.wantEvent {
				t.Errorf("event = %q, want %q", event, tt.wantEvent)
			}
			if string(data) != tt.wantData {
				t.Errorf("data = %q, want %q", data, tt.wantData)
			}
		})
	}
}
