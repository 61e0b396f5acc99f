package domain

// TxStatus is the terminal status of a payment transaction.
type TxStatus string

const (
	TxStatusSuccess TxStatus = "success"
	TxStatusFailure TxStatus = "failure"
)

// TransactionOutcome exists for the duration of one send.
type TransactionOutcome struct {
	TxHash      string
	Status      TxStatus
	BlockNumber uint64
	GasUsed     uint64
}

// Succeeded reports whether the transaction was mined successfully.
func (o TransactionOutcome) Succeeded() bool {
	return o.Status == TxStatusSuccess
}
