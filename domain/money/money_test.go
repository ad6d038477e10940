package money

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFromDecimal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCents int64
		wantErr   bool
	}{
		{name: "integer input means whole units", input: "123", wantCents: 12300},
		{name: "two fractional digits", input: "123.45", wantCents: 12345},
		{name: "one fractional digit", input: "1.5", wantCents: 150},
		{name: "explicit zero cents", input: "123.00", wantCents: 12300},
		{name: "trailing zero beyond cents", input: "1.230", wantCents: 123},
		{name: "four digit integer", input: "1234", wantCents: 123400},
		{name: "surrounding whitespace", input: " 9.99 ", wantCents: 999},
		{name: "zero", input: "0", wantCents: 0},
		{name: "maximum", input: "999999.99", wantCents: MaxCents},
		{name: "too precise", input: "1.234", wantErr: true},
		{name: "out of range", input: "1234567", wantErr: true},
		{name: "negative", input: "-5", wantErr: true},
		{name: "plus sign", input: "+5", wantErr: true},
		{name: "exponent", input: "1e3", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "dangling point", input: "12.", wantErr: true},
		{name: "comma separator", input: "12,50", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromDecimal(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FromDecimal(%q) expected error, got %d cents", tt.input, got.Cents())
				}
				if !errors.Is(err, ErrInvalidAmount) {
					t.Errorf("expected ErrInvalidAmount, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromDecimal(%q) error = %v", tt.input, err)
			}
			if got.Cents() != tt.wantCents {
				t.Errorf("FromDecimal(%q) = %d cents, want %d", tt.input, got.Cents(), tt.wantCents)
			}
		})
	}
}

func TestToDecimalString_RoundTrip(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"123", "123.00"},
		{"123.4", "123.40"},
		{"123.45", "123.45"},
		{"0.05", "0.05"},
		{"0", "0.00"},
		{"999999.99", "999999.99"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m := MustFromDecimal(tt.input)
			if got := m.ToDecimalString(); got != tt.want {
				t.Errorf("ToDecimalString() = %q, want %q", got, tt.want)
			}

			again := MustFromDecimal(m.ToDecimalString())
			if !again.Equal(m) {
				t.Errorf("round trip changed value: %d != %d", again.Cents(), m.Cents())
			}
		})
	}
}

func TestMoney_EqualityAndOrdering(t *testing.T) {
	a := MustFromDecimal("123")
	b := MustFromDecimal("123.00")
	c := MustFromDecimal("123.01")

	if !a.Equal(b) {
		t.Errorf("expected %s to equal %s", a, b)
	}
	if a.Cents() != 12300 {
		t.Errorf("expected 12300 cents, got %d", a.Cents())
	}
	if a.Compare(c) != -1 || c.Compare(a) != 1 || a.Compare(b) != 0 {
		t.Errorf("unexpected ordering between %s, %s and %s", a, b, c)
	}
}

func TestFromCents(t *testing.T) {
	if _, err := FromCents(-1); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative cents, got %v", err)
	}
	if _, err := FromCents(MaxCents + 1); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount above max, got %v", err)
	}
	m, err := FromCents(150)
	if err != nil {
		t.Fatalf("FromCents() error = %v", err)
	}
	if m.ToDecimalString() != "1.50" {
		t.Errorf("expected 1.50, got %s", m.ToDecimalString())
	}
}

func TestMoney_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want int64
	}{
		{"int64", int64(12300), 12300},
		{"bytes", []byte("450"), 450},
		{"string", "99", 99},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Money
			if err := m.Scan(tt.src); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if m.Cents() != tt.want {
				t.Errorf("Scan() = %d, want %d", m.Cents(), tt.want)
			}
		})
	}

	var m Money
	if err := m.Scan(1.5); err == nil {
		t.Error("expected error scanning float64")
	}
}

func TestMoney_JSON(t *testing.T) {
	m := MustFromDecimal("12.5")
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"12.50"` {
		t.Errorf("Marshal() = %s, want \"12.50\"", data)
	}

	for _, in := range []string{`"12.50"`, `12.5`, `"12.5"`} {
		var got Money
		if err := json.Unmarshal([]byte(in), &got); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", in, err)
		}
		if got.Cents() != 1250 {
			t.Errorf("Unmarshal(%s) = %d cents, want 1250", in, got.Cents())
		}
	}

	var bad Money
	if err := json.Unmarshal([]byte(`"1.234"`), &bad); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if err := json.Unmarshal([]byte(`true`), &bad); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for bool, got %v", err)
	}
}
