package balance

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paidchat/internal/chain"
	"paidchat/internal/chain/stub"
	"paidchat/internal/cost"
	"paidchat/internal/domain"
)

const wallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type table map[int64]domain.Chain

func (t table) Lookup(id int64) (domain.Chain, bool) {
	c, ok := t[id]
	return c, ok
}

var testChains = table{
	84532: {
		ID:             84532,
		Name:           "Base Sepolia",
		Symbol:         "ETH",
		Decimals:       18,
		PaymentAddress: "0x18432A3527339bB8D9b850aEBC1C2754b0ADe096",
		Shape:          domain.PaymentShapeDeposit,
	},
}

type fixedPrice float64

func (p fixedPrice) GetPrice(context.Context, string) (float64, error) { return float64(p), nil }

func ether(n float64) *big.Int {
	v, _ := cost.ToBaseUnits(n, 18)
	return v
}

func newGuard(client *stub.Client) *Guard {
	return NewGuard(testChains, client, cost.NewEstimator(fixedPrice(2000), client))
}

func TestIsSufficient(t *testing.T) {
	tests := []struct {
		balance, total *big.Int
		want           bool
	}{
		{big.NewInt(10), big.NewInt(9), true},
		{big.NewInt(10), big.NewInt(10), true},
		{big.NewInt(9), big.NewInt(10), false},
		{nil, big.NewInt(1), false},
		{big.NewInt(0), nil, true},
		{nil, nil, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSufficient(tt.balance, tt.total), "B=%v T=%v", tt.balance, tt.total)
	}
}

func TestGuard_Sufficient(t *testing.T) {
	client := stub.NewClient(84532)
	client.SetBalance(wallet, ether(1.0))
	g := newGuard(client)

	check, err := g.Authoritative(context.Background(), Inputs{
		Connected:   true,
		Address:     wallet,
		ChainID:     84532,
		MessageCost: 1.0,
	})
	require.NoError(t, err)
	assert.True(t, check.Sufficient)
	assert.Equal(t, "500000000000000", check.Estimate.AmountWei.String())
	assert.Equal(t, domain.PaymentShapeDeposit, check.Chain.Shape)
}

func TestGuard_Insufficient(t *testing.T) {
	client := stub.NewClient(84532)
	client.SetBalance(wallet, ether(0.0001))
	g := newGuard(client)

	check, err := g.Authoritative(context.Background(), Inputs{
		Connected:   true,
		Address:     wallet,
		ChainID:     84532,
		MessageCost: 1.0,
	})
	require.NoError(t, err)
	assert.False(t, check.Sufficient)
}

func TestGuard_ExactBalanceIsSufficient(t *testing.T) {
	client := stub.NewClient(84532)
	// 0.0005 ETH amount plus 21000 gas at 1 gwei.
	client.SetBalance(wallet, big.NewInt(521_000_000_000_000))
	g := newGuard(client)

	check, err := g.Authoritative(context.Background(), Inputs{Connected: true, Address: wallet, ChainID: 84532, MessageCost: 1})
	require.NoError(t, err)
	assert.True(t, check.Sufficient)

	client.SetBalance(wallet, big.NewInt(520_999_999_999_999))
	check, err = g.Authoritative(context.Background(), Inputs{Connected: true, Address: wallet, ChainID: 84532, MessageCost: 1})
	require.NoError(t, err)
	assert.False(t, check.Sufficient)
}

func TestGuard_FailsClosed(t *testing.T) {
	client := stub.NewClient(1)
	client.SetBalance(wallet, ether(1000))
	g := newGuard(client)
	ctx := context.Background()

	check, err := g.Authoritative(ctx, Inputs{Connected: true, Address: wallet, ChainID: 1, MessageCost: 1})
	require.NoError(t, err)
	assert.False(t, check.Sufficient, "unsupported chain must be insufficient")

	check, err = g.Refresh(ctx, Inputs{Connected: false, Address: wallet, ChainID: 84532, MessageCost: 1})
	require.NoError(t, err)
	assert.False(t, check.Sufficient, "disconnected wallet must be insufficient")

	assert.Equal(t, 0, client.BalanceCalls(), "no network calls expected")
	assert.Equal(t, 0, client.EstimateCalls(), "no network calls expected")
}

func TestGuard_RefreshReusesUnchangedResult(t *testing.T) {
	client := stub.NewClient(84532)
	client.SetBalance(wallet, ether(1))
	g := newGuard(client)
	ctx := context.Background()
	in := Inputs{Connected: true, Address: wallet, ChainID: 84532, MessageCost: 1}

	_, err := g.Refresh(ctx, in)
	require.NoError(t, err)
	_, err = g.Refresh(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 1, client.EstimateCalls(), "unchanged inputs must not re-estimate")

	in.MessageCost = 1.2
	_, err = g.Refresh(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, client.EstimateCalls(), "changed cost must re-estimate")

	client.SetBalance(wallet, ether(2))
	_, err = g.Refresh(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 3, client.EstimateCalls(), "changed balance must re-estimate")

	_, err = g.Authoritative(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 4, client.EstimateCalls(), "authoritative check always re-estimates")

	last, ok := g.Last()
	require.True(t, ok)
	assert.True(t, last.Sufficient)
}

func TestGuard_BalanceError(t *testing.T) {
	client := stub.NewClient(84532)
	client.BalanceErr = errors.New("rpc down")
	g := newGuard(client)

	_, err := g.Authoritative(context.Background(), Inputs{Connected: true, Address: wallet, ChainID: 84532, MessageCost: 1})
	assert.Error(t, err)
}

// rpcNode serves eth_getBalance, eth_gasPrice and eth_estimateGas the way a
// geth node does: estimates naming a sender that cannot cover the value fail
// with -32000.
func rpcNode(t *testing.T, balance *big.Int, rejectAll bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_getBalance":
			resp["result"] = chain.EncodeBig(balance)
		case "eth_gasPrice":
			resp["result"] = "0x3b9aca00"
		case "eth_estimateGas":
			var arg map[string]string
			if err := json.Unmarshal(req.Params[0], &arg); err != nil {
				t.Errorf("decode call: %v", err)
			}
			if _, ok := arg["from"]; ok || rejectAll {
				resp["error"] = map[string]interface{}{"code": -32000, "message": "insufficient funds for transfer"}
			} else {
				resp["result"] = "0x5208"
			}
		default:
			t.Errorf("unexpected method %s", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestGuard_NodeRejectsUnaffordableEstimate(t *testing.T) {
	in := Inputs{Connected: true, Address: wallet, ChainID: 84532, MessageCost: 1}
	ctx := context.Background()

	tests := []struct {
		name         string
		rejectAll    bool
		wantEstimate bool
	}{
		{name: "estimate without sender", rejectAll: false, wantEstimate: true},
		{name: "node rejects every estimate", rejectAll: true, wantEstimate: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := rpcNode(t, ether(0.0001), tt.rejectAll)
			defer node.Close()
			client := chain.NewHTTPClient(node.URL, chain.WithMaxRetries(0))
			g := NewGuard(testChains, client, cost.NewEstimator(fixedPrice(2000), client))

			check, err := g.Authoritative(ctx, in)
			require.NoError(t, err)
			assert.False(t, check.Sufficient)
			assert.Equal(t, "100000000000000", check.Balance.String())
			if tt.wantEstimate {
				assert.Equal(t, "521000000000000", check.Estimate.TotalWei.String())
			}

			check, err = g.Refresh(ctx, in)
			require.NoError(t, err)
			assert.False(t, check.Sufficient)
		})
	}
}

func TestIsInsufficientFundsError(t *testing.T) {
	client := stub.NewClient(84532)
	client.SetBalance(wallet, ether(0.0001))

	_, err := client.EstimateGas(context.Background(), chain.CallMsg{From: wallet, To: wallet, Value: ether(1)})
	require.Error(t, err)
	assert.True(t, chain.IsInsufficientFunds(err))
	assert.False(t, chain.IsInsufficientFunds(errors.New("insufficient funds")), "only node errors classify")
}
