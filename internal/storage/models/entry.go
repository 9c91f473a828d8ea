// internal/storage/models/entry.go
package models

// Entry is one committed engine operation. Entries are appended in the same
// transaction as the state they describe, so the journal never disagrees
// with the accounts.
type Entry struct {
	BaseModel
	Operation     string
	Signer        string
	Subject       string // the identity the operation acted on, if not the signer
	PaymentAmount uint64 // payment-asset base units moved by the signer/subject
	SaleAmount    uint64 // sale-asset base units minted or burned
	ReserveAfter  uint64
	SupplyAfter   uint64
}
