package collection

// NewTestTransactor constructs a minimal Transactor for use in tests
// of packages that need to exercise the ambient-transaction path
// (collection.WithTransaction) without pulling in the full txn.Manager.
func NewTestTransactor(id string) Transactor {
	return newDirectTxn(id)
}
