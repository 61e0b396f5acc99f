package orchestrator

import "sync"

// Wallet is the connected account as seen by the send flow.
type Wallet interface {
	Connected() bool
	Address() string
	ChainID() int64
}

// AccountWallet is a Wallet backed by a fixed node-managed account.
type AccountWallet struct {
	mu        sync.RWMutex
	address   string
	chainID   int64
	connected bool
}

// NewAccountWallet creates a connected wallet for address on chainID.
func NewAccountWallet(address string, chainID int64) *AccountWallet {
	return &AccountWallet{address: address, chainID: chainID, connected: address != ""}
}

// Connected reports whether an account is available.
func (w *AccountWallet) Connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Address returns the account address.
func (w *AccountWallet) Address() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.address
}

// ChainID returns the chain the account is on.
func (w *AccountWallet) ChainID() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chainID
}

// Disconnect marks the wallet as disconnected.
func (w *AccountWallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
}

// SwitchChain moves the wallet to chainID.
func (w *AccountWallet) SwitchChain(chainID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chainID = chainID
}
