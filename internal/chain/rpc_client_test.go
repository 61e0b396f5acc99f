package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func rpcServer(t *testing.T, handle func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handle(req),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetBalance(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "eth_getBalance" {
			t.Errorf("expected eth_getBalance, got %s", req.Method)
		}
		if len(req.Params) != 2 || req.Params[1] != "latest" {
			t.Errorf("unexpected params %v", req.Params)
		}
		return "0xde0b6b3a7640000"
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	balance, err := client.GetBalance(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Cmp(big.NewInt(1_000_000_000_000_000_000)) != 0 {
		t.Errorf("expected 1e18, got %s", balance)
	}
}

func TestHTTPClient_EstimateGasAndPrice(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		switch req.Method {
		case "eth_estimateGas":
			arg, _ := req.Params[0].(map[string]interface{})
			if arg["data"] != "0xd0e30db0" {
				t.Errorf("expected deposit call data, got %v", arg["data"])
			}
			if arg["value"] != "0x1c6bf52634000" {
				t.Errorf("expected value 0x1c6bf52634000, got %v", arg["value"])
			}
			return "0xb411"
		case "eth_gasPrice":
			return "0x3b9aca00"
		}
		t.Errorf("unexpected method %s", req.Method)
		return nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	gas, err := client.EstimateGas(ctx, CallMsg{
		From:  "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		To:    "0x2Ad88469d56fCDAAc8ef812Bd3D7635EA44A7231",
		Value: big.NewInt(500_000_000_000_000),
		Data:  FunctionSelector("deposit()"),
	})
	if err != nil {
		t.Fatalf("EstimateGas: %v", err)
	}
	if gas != 46097 {
		t.Errorf("expected 46097 gas, got %d", gas)
	}

	price, err := client.GasPrice(ctx)
	if err != nil {
		t.Fatalf("GasPrice: %v", err)
	}
	if price.Int64() != 1_000_000_000 {
		t.Errorf("expected 1 gwei, got %s", price)
	}
}

func TestHTTPClient_GetTransactionReceipt(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Params[0] == "0xpending" {
			return nil
		}
		return map[string]interface{}{
			"transactionHash": "0xabc",
			"status":          "0x0",
			"blockNumber":     "0x10",
			"gasUsed":         "0x5208",
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	receipt, err := client.GetTransactionReceipt(ctx, "0xpending")
	if err != nil {
		t.Fatalf("GetTransactionReceipt: %v", err)
	}
	if receipt != nil {
		t.Errorf("expected nil receipt for pending tx, got %+v", receipt)
	}

	receipt, err = client.GetTransactionReceipt(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetTransactionReceipt: %v", err)
	}
	if receipt.Status != ReceiptStatusFailed {
		t.Errorf("expected failed status, got %d", receipt.Status)
	}
	if receipt.BlockNumber != 16 || receipt.GasUsed != 21000 {
		t.Errorf("unexpected receipt %+v", receipt)
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32000,
				"message": "insufficient funds for gas * price + value",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))
	_, err := client.GasPrice(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if rpcErr.Code != -32000 {
		t.Errorf("expected code -32000, got %d", rpcErr.Code)
	}
	if calls.Load() != 1 {
		t.Errorf("RPC errors should not be retried, got %d calls", calls.Load())
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0x14a34",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
	)

	id, err := client.ChainID(context.Background())
	if err != nil {
		t.Fatalf("ChainID: %v", err)
	}
	if id != 84532 {
		t.Errorf("expected chain id 84532, got %d", id)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_SendTransactionNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))

	_, err := client.SendTransaction(context.Background(), CallMsg{
		From:  "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		To:    "0x2Ad88469d56fCDAAc8ef812Bd3D7635EA44A7231",
		Value: big.NewInt(1),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", attempts.Load())
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "eth_sendTransaction" {
			t.Errorf("expected eth_sendTransaction, got %s", req.Method)
		}
		return "0xfeed"
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	hash, err := client.SendTransaction(context.Background(), CallMsg{
		From: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		To:   "0x2Ad88469d56fCDAAc8ef812Bd3D7635EA44A7231",
	})
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if hash != "0xfeed" {
		t.Errorf("expected 0xfeed, got %s", hash)
	}
}

func TestHTTPClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(5), WithRetryDelay(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.BlockNumber(ctx); err == nil {
		t.Fatal("expected error")
	}
}
