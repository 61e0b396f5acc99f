package cost

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"paidchat/internal/chain/stub"
)

func TestComputeTokenAmount(t *testing.T) {
	tests := []struct {
		name    string
		fiat    float64
		price   float64
		want    float64
		wantErr error
	}{
		{name: "eth at 2000", fiat: 1.0, price: 2000, want: 0.0005},
		{name: "fractional", fiat: 2.5, price: 0.5, want: 5},
		{name: "zero fiat", fiat: 0, price: 100, want: 0},
		{name: "zero price", fiat: 1, price: 0, wantErr: ErrInvalidPriceData},
		{name: "negative price", fiat: 1, price: -3, wantErr: ErrInvalidPriceData},
		{name: "nan price", fiat: 1, price: math.NaN(), wantErr: ErrInvalidPriceData},
		{name: "inf price", fiat: 1, price: math.Inf(1), wantErr: ErrInvalidPriceData},
		{name: "negative fiat", fiat: -1, price: 100, wantErr: ErrInvalidCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeTokenAmount(tt.fiat, tt.price)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestComputeTokenAmount_MatchesDivision(t *testing.T) {
	for _, c := range []float64{0.01, 1, 1.2, 7.77, 150} {
		for _, p := range []float64{0.003, 1, 2000, 65000.5} {
			got, err := ComputeTokenAmount(c, p)
			if err != nil {
				t.Fatalf("ComputeTokenAmount(%v, %v): %v", c, p, err)
			}
			if got != c/p {
				t.Errorf("ComputeTokenAmount(%v, %v) = %v, want %v", c, p, got, c/p)
			}
		}
	}
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   float64
		decimals int32
		want     string
	}{
		{0.0005, 18, "500000000000000"},
		{1, 18, "1000000000000000000"},
		{1.5, 8, "150000000"},
		{0.123456789, 6, "123456"},
		{0, 18, "0"},
	}
	for _, tt := range tests {
		got, err := ToBaseUnits(tt.amount, tt.decimals)
		if err != nil {
			t.Fatalf("ToBaseUnits(%v): %v", tt.amount, err)
		}
		if got.String() != tt.want {
			t.Errorf("ToBaseUnits(%v, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
		}
	}

	if _, err := ToBaseUnits(-1, 18); !errors.Is(err, ErrInvalidCost) {
		t.Errorf("expected ErrInvalidCost, got %v", err)
	}
}

func TestEstimateTotalCost(t *testing.T) {
	amount := big.NewInt(500_000_000_000_000)
	total := EstimateTotalCost(amount, 21000, big.NewInt(1_000_000_000))
	if total.String() != "521000000000000" {
		t.Errorf("unexpected total %s", total)
	}
	if amount.String() != "500000000000000" {
		t.Error("amount must not be mutated")
	}
	if EstimateTotalCost(nil, 0, nil).Sign() != 0 {
		t.Error("expected zero total")
	}
}

func TestFormatUnits(t *testing.T) {
	v, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := FormatUnits(v, 18); got != "1.5" {
		t.Errorf("expected 1.5, got %s", got)
	}
	if got := FormatUnits(big.NewInt(500_000_000_000_000), 18); got != "0.0005" {
		t.Errorf("expected 0.0005, got %s", got)
	}
	if got := FormatUnits(nil, 18); got != "0" {
		t.Errorf("expected 0, got %s", got)
	}
}

type fixedPrice float64

func (p fixedPrice) GetPrice(context.Context, string) (float64, error) { return float64(p), nil }

func TestEstimator_Estimate(t *testing.T) {
	client := stub.NewClient(84532)
	e := NewEstimator(fixedPrice(2000), client)

	est, err := e.Estimate(context.Background(), Request{
		FiatCost: 1.0,
		Symbol:   "ETH",
		Decimals: 18,
		To:       "0x18432A3527339bB8D9b850aEBC1C2754b0ADe096",
	})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.TokenAmount != 0.0005 {
		t.Errorf("expected 0.0005, got %v", est.TokenAmount)
	}
	if est.AmountWei.String() != "500000000000000" {
		t.Errorf("unexpected amount %s", est.AmountWei)
	}
	if est.GasUnits != 21000 {
		t.Errorf("unexpected gas %d", est.GasUnits)
	}
	if est.TotalWei.String() != "521000000000000" {
		t.Errorf("unexpected total %s", est.TotalWei)
	}
}

func TestEstimator_InvalidPrice(t *testing.T) {
	e := NewEstimator(fixedPrice(0), stub.NewClient(1))
	_, err := e.Estimate(context.Background(), Request{FiatCost: 1, Symbol: "ETH", Decimals: 18})
	if !errors.Is(err, ErrInvalidPriceData) {
		t.Errorf("expected ErrInvalidPriceData, got %v", err)
	}
}

func TestEstimator_GasError(t *testing.T) {
	client := stub.NewClient(1)
	client.EstimateErr = errors.New("execution reverted")
	e := NewEstimator(fixedPrice(2000), client)
	if _, err := e.Estimate(context.Background(), Request{FiatCost: 1, Symbol: "ETH", Decimals: 18}); err == nil {
		t.Fatal("expected error")
	}
}
