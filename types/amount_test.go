package types

import (
	"encoding/json"
	"math/big"
	"testing"
)

func TestAmountConstructors(t *testing.T) {
	tests := []struct {
		name    string
		amount  Amount
		base    string
		display string
	}{
		{"one base unit", NewAmount(1), "1", "0.000000000000000001"},
		{"zero", NewAmount(0), "0", "0.0"},
		{"one token", Tokens(1), "1000000000000000000", "1.0"},
		{"thousand tokens", Tokens(1000), "1000000000000000000000", "1000.0"},
		{"total supply", Tokens(10_000_000), "10000000000000000000000000", "10000000.0"},
		{"fractional", MustParseAmount("1500000000000000000"), "1500000000000000000", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.String(); got != tt.base {
				t.Errorf("String: got %s, want %s", got, tt.base)
			}
			if got := tt.amount.Format(BaseUnitDecimals); got != tt.display {
				t.Errorf("Format: got %s, want %s", got, tt.display)
			}
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	maxAmount := MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")

	tests := []struct {
		name     string
		op       func() (Amount, bool)
		expected Amount
		overflow bool
	}{
		{"Add", func() (Amount, bool) { return NewAmount(100).Add(NewAmount(200)) }, NewAmount(300), false},
		{"Sub", func() (Amount, bool) { return NewAmount(500).Sub(NewAmount(200)) }, NewAmount(300), false},
		{"Sub to zero", func() (Amount, bool) { return Tokens(1).Sub(Tokens(1)) }, NewAmount(0), false},
		{"Sub underflow", func() (Amount, bool) { return NewAmount(1).Sub(NewAmount(2)) }, Amount{}, true},
		{"Add overflow", func() (Amount, bool) { return maxAmount.Add(NewAmount(1)) }, Amount{}, true},
		{"Sum", func() (Amount, bool) { return Sum(Tokens(1), Tokens(2), Tokens(3)) }, Tokens(6), false},
		{"Sum overflow", func() (Amount, bool) { return Sum(maxAmount, maxAmount) }, Amount{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, overflow := tt.op()
			if overflow != tt.overflow {
				t.Fatalf("overflow: got %v, want %v", overflow, tt.overflow)
			}
			if !tt.overflow && !got.Equal(tt.expected) {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestAmountComparison(t *testing.T) {
	small, larger := Tokens(1), Tokens(2)

	if !small.Lt(larger) || small.Gt(larger) {
		t.Error("expected 1 token < 2 tokens")
	}
	if small.Cmp(larger) != -1 || larger.Cmp(small) != 1 || small.Cmp(Tokens(1)) != 0 {
		t.Error("Cmp returned unexpected ordering")
	}
	if !NewAmount(0).IsZero() || small.IsZero() {
		t.Error("IsZero returned unexpected result")
	}
	var zero Amount
	if !zero.Equal(NewAmount(0)) {
		t.Error("zero value should equal NewAmount(0)")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"0", false},
		{"1000000000000000000000", false},
		{" 42 ", false},
		{"", true},
		{"-1", true},
		{"1.5", true},
		{"0x10", true},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639936", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestAmountFromBig(t *testing.T) {
	b, _ := new(big.Int).SetString("10000000000000000000000000", 10)
	a, err := FromBig(b)
	if err != nil {
		t.Fatalf("FromBig: %v", err)
	}
	if !a.Equal(Tokens(10_000_000)) {
		t.Errorf("got %s, want %s", a, Tokens(10_000_000))
	}
	if a.Big().Cmp(b) != 0 {
		t.Errorf("Big round trip mismatch: %s", a.Big())
	}

	if _, err := FromBig(big.NewInt(-1)); err == nil {
		t.Error("expected error for negative value")
	}
}

func TestAmountJSON(t *testing.T) {
	type payload struct {
		Amount Amount `json:"amount"`
	}

	data, err := json.Marshal(payload{Amount: Tokens(1000)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"amount":"1000000000000000000000"}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var out payload
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Amount.Equal(Tokens(1000)) {
		t.Errorf("got %s, want %s", out.Amount, Tokens(1000))
	}
}

func TestAmountScan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		want    Amount
		wantErr bool
	}{
		{"string", "1000", NewAmount(1000), false},
		{"bytes", []byte("7"), NewAmount(7), false},
		{"int64", int64(9), NewAmount(9), false},
		{"nil", nil, Amount{}, false},
		{"negative int64", int64(-1), Amount{}, true},
		{"float", 1.5, Amount{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			err := a.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !a.Equal(tt.want) {
				t.Errorf("got %s, want %s", a, tt.want)
			}
		})
	}
}

func TestAmountFloat64Tokens(t *testing.T) {
	if got := Tokens(1000).Float64Tokens(BaseUnitDecimals); got != 1000 {
		t.Errorf("got %v, want 1000", got)
	}
	if got := MustParseAmount("500000000000000000").Float64Tokens(BaseUnitDecimals); got != 0.5 {
		t.Errorf("got %v, want 0.5", got)
	}
}
