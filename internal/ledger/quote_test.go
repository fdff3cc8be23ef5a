package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuote(t *testing.T) {
	cases := []struct {
		fiat, price string
		precision   int32
		want        string
	}{
		{"39", "500", 4, "0.078"},
		{"39", "444", 4, "0.0878"},
		{"39", "444", -1, "0.0878"},
		{"10", "3", 0, "3"},
		{"39", "444", 0, "0"},
		{"39", "444", 30, "0.087837837837837838"},
		{"1", "3", 2, "0.33"},
		{"2", "3", 2, "0.67"},
		{"39", "0", 4, "0"},
		{"0", "444", 4, "0"},
		{"1", "100000", 4, "0"},
	}
	for _, tc := range cases {
		got := Quote(dec(tc.fiat), dec(tc.price), tc.precision)
		if !got.Equal(dec(tc.want)) {
			t.Errorf("Quote(%s, %s, %d) = %s, want %s", tc.fiat, tc.price, tc.precision, got, tc.want)
		}
	}
}

func TestProjectedReward(t *testing.T) {
	got := ProjectedReward(dec("50"), dec("20"), 30)
	if !got.Equal(dec("0.82191781")) {
		t.Fatalf("expected 0.82191781, got %s", got)
	}
	if !ProjectedReward(dec("50"), dec("20"), 0).IsZero() {
		t.Fatal("expected zero reward for zero lock days")
	}
}

func TestValidAmount(t *testing.T) {
	if !ValidAmount(dec("0.000000000000000001")) {
		t.Fatal("18 fractional digits must be accepted")
	}
	if !ValidAmount(dec("1.500000000000000000000")) {
		t.Fatal("trailing zeros beyond the scale must be accepted")
	}
	if ValidAmount(dec("0.0000000000000000001")) {
		t.Fatal("19 fractional digits must be rejected")
	}
	if !ValidAmount(dec("999999999999999999.999999999999999999")) {
		t.Fatal("18 integer digits must be accepted")
	}
	if ValidAmount(dec("1000000000000000000")) || ValidAmount(dec("1e19")) {
		t.Fatal("more than 18 integer digits must be rejected")
	}
	if ValidAmount(decimal.Zero) || ValidAmount(dec("-3")) {
		t.Fatal("non-positive amounts must be rejected")
	}
}
