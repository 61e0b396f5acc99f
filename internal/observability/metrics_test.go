package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMessage(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.MessagesTotal.WithLabelValues("confirmed"))
	RecordMessage("confirmed")
	after := testutil.ToFloat64(DefaultMetrics.MessagesTotal.WithLabelValues("confirmed"))
	if after != before+1 {
		t.Errorf("expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestRecordPriceFetch(t *testing.T) {
	RecordPriceFetch(map[string]float64{"ethereum": 2500}, nil)
	if got := testutil.ToFloat64(DefaultMetrics.LastPriceUSD.WithLabelValues("ethereum")); got != 2500 {
		t.Errorf("expected 2500, got %v", got)
	}

	before := testutil.ToFloat64(DefaultMetrics.PriceFetchErrors)
	RecordPriceFetch(nil, errors.New("boom"))
	if got := testutil.ToFloat64(DefaultMetrics.PriceFetchErrors); got != before+1 {
		t.Errorf("expected error counter to increase, got %v", got)
	}
}

func TestUpdateChatCost(t *testing.T) {
	UpdateChatCost("default", 1.2)
	if got := testutil.ToFloat64(DefaultMetrics.ChatCost.WithLabelValues("default")); got != 1.2 {
		t.Errorf("expected 1.2, got %v", got)
	}
}
