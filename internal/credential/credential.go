// Package credential holds the client's access credential, refresh credential
// and identity hint behind an injectable Store.
//
// A Store has three named slots. Reads never fail: a backend that cannot
// read reports the slot as absent. Set is a partial update, so a renewal that
// only returns a new access token leaves the stored refresh token intact.
// Clear removes all three slots as one logical unit.
package credential

import "context"

// Pair is the credential set for one client session. An empty field means
// "absent" in reads and "leave untouched" in Set.
type Pair struct {
	Access   string `json:"access,omitempty"`
	Refresh  string `json:"refresh,omitempty"`
	Identity string `json:"user_email,omitempty"`
}

// IsZero reports whether no field is set.
func (p Pair) IsZero() bool {
	return p.Access == "" && p.Refresh == "" && p.Identity == ""
}

// Merge returns p with every non-empty field of update applied.
func (p Pair) Merge(update Pair) Pair {
	if update.Access != "" {
		p.Access = update.Access
	}
	if update.Refresh != "" {
		p.Refresh = update.Refresh
	}
	if update.Identity != "" {
		p.Identity = update.Identity
	}
	return p
}

// Store is durable key/value storage for the credential slots.
type Store interface {
	Access(ctx context.Context) string
	Refresh(ctx context.Context) string
	Identity(ctx context.Context) string

	// Set persists the non-empty fields of p; empty fields are untouched.
	Set(ctx context.Context, p Pair) error

	// Clear removes all three slots. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}

// Snapshot reads all three slots.
func Snapshot(ctx context.Context, s Store) Pair {
	return Pair{
		Access:   s.Access(ctx),
		Refresh:  s.Refresh(ctx),
		Identity: s.Identity(ctx),
	}
}
