// Package protocol resolves a raw protocol record into the canonical
// identity the aggregation works against.
package protocol

import (
	"errors"
	"strings"

	"github.com/web3-frozen/defi-overview/internal/llama"
	"github.com/web3-frozen/defi-overview/internal/metadata"
)

// ErrNotFound is returned when there is no protocol record to resolve.
var ErrNotFound = errors.New("protocol not found")

const parentPrefix = "parent#"

// Kind distinguishes a single protocol from a parent rollup over children.
type Kind int

const (
	KindSingle Kind = iota
	KindParent
)

func (k Kind) String() string {
	if k == KindParent {
		return "parent"
	}
	return "single"
}

// Identity is a resolved protocol. It is built once per request and not
// mutated afterwards.
type Identity struct {
	ID             string
	Kind           Kind
	Name           string
	Symbol         *string
	Category       string
	Chains         []string
	Flags          metadata.Flags
	ParentProtocol string
	OtherProtocols []string
	GeckoID        string
	Github         []string
	Governance     []GovernanceSource
	Module         string
	Treasury       string
	Stablecoins    []string
}

// Resolve builds the identity for raw, attaching capability flags from snap.
// Unknown ids resolve with every flag off.
func Resolve(raw *llama.Protocol, snap *metadata.Snapshot) (*Identity, error) {
	if raw == nil || raw.ID == "" {
		return nil, ErrNotFound
	}

	id := &Identity{
		ID:             raw.ID,
		Kind:           KindSingle,
		Name:           raw.Name,
		Category:       raw.Category,
		Chains:         raw.Chains,
		ParentProtocol: raw.ParentProtocol,
		OtherProtocols: raw.OtherProtocols,
		GeckoID:        raw.GeckoID,
		Github:         raw.Github,
		Module:         raw.Module,
		Treasury:       raw.Treasury,
		Stablecoins:    raw.Stablecoins,
	}
	if strings.HasPrefix(raw.ID, parentPrefix) {
		id.Kind = KindParent
	}
	if raw.Symbol != "" {
		s := raw.Symbol
		id.Symbol = &s
	}
	if meta, ok := snap.Protocol(raw.ID); ok {
		id.Flags = meta.Flags
	}
	// Dev metrics exist for anything that lists a github org.
	if len(raw.Github) > 0 {
		id.Flags.DevMetrics = true
	}
	for _, gid := range raw.GovernanceID {
		if gid == "" {
			continue
		}
		id.Governance = append(id.Governance, ParseGovernanceID(gid))
	}
	return id, nil
}

// PathID is the id as used in id-keyed URL paths: parent/<rest> for parent
// rollups, the bare id otherwise.
func (i *Identity) PathID() string {
	if i.Kind == KindParent {
		return "parent/" + strings.TrimPrefix(i.ID, parentPrefix)
	}
	return i.ID
}

func (i *Identity) IsParent() bool { return i.Kind == KindParent }

// SymbolOr returns the token symbol, or def when the protocol has none.
func (i *Identity) SymbolOr(def string) string {
	if i.Symbol == nil {
		return def
	}
	return *i.Symbol
}

// Slug normalises a display name into the lowercase dash form used for
// upstream keys and name comparisons.
func Slug(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	return strings.ReplaceAll(s, "'", "")
}
