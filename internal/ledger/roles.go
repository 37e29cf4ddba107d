package ledger

import (
	"sort"

	"aishi/internal/chain"
)

// Role names an access-control role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMinter Role = "minter"
)

// Roles is a role membership table.
type Roles struct {
	members map[Role]map[chain.Address]struct{}
}

func NewRoles() *Roles {
	return &Roles{members: make(map[Role]map[chain.Address]struct{})}
}

// Grant adds account to role. Granting twice is a no-op.
func (r *Roles) Grant(role Role, account chain.Address) error {
	if account.IsZero() {
		return ErrZeroAddress
	}

	set, ok := r.members[role]
	if !ok {
		set = make(map[chain.Address]struct{})
		r.members[role] = set
	}
	set[account] = struct{}{}
	return nil
}

// Revoke removes account from role and reports whether it was a member.
func (r *Roles) Revoke(role Role, account chain.Address) bool {
	set, ok := r.members[role]
	if !ok {
		return false
	}
	if _, ok := set[account]; !ok {
		return false
	}
	delete(set, account)
	return true
}

func (r *Roles) Has(role Role, account chain.Address) bool {
	_, ok := r.members[role][account]
	return ok
}

// Members lists role members sorted by address.
func (r *Roles) Members(role Role) []chain.Address {
	out := make([]chain.Address, 0, len(r.members[role]))
	for a := range r.members[role] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// Snapshot returns a copy of the membership table.
func (r *Roles) Snapshot() map[Role][]chain.Address {
	out := make(map[Role][]chain.Address, len(r.members))
	for role := range r.members {
		out[role] = r.Members(role)
	}
	return out
}

// Restore replaces the membership table.
func (r *Roles) Restore(snapshot map[Role][]chain.Address) error {
	next := NewRoles()
	for role, accounts := range snapshot {
		for _, a := range accounts {
			if err := next.Grant(role, a); err != nil {
				return err
			}
		}
	}
	r.members = next.members
	return nil
}
