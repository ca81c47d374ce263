package auth

// Gate rejects requests until a credential has been obtained.
type Gate struct {
	store *CredentialStore
}

// NewGate creates a Gate backed by store.
func NewGate(store *CredentialStore) *Gate {
	return &Gate{store: store}
}

// Check returns ErrNotAuthenticated when no credential is held. It performs no I/O.
func (g *Gate) Check() error {
	if !g.store.IsAuthenticated() {
		return &Error{Kind: KindNotAuthenticated, Detail: "log in at /login first"}
	}
	return nil
}
