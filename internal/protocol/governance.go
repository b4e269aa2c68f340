package protocol

import (
	"strings"

	"github.com/web3-frozen/defi-overview/internal/llama"
)

// GovernanceKind is the governance integration a proposal feed comes from.
type GovernanceKind string

const (
	GovernanceSnapshot GovernanceKind = "snapshot"
	GovernanceCompound GovernanceKind = "compound"
	GovernanceTally    GovernanceKind = "tally"
)

// GovernanceSource is a decoded governance id such as "snapshot:aave.eth".
type GovernanceSource struct {
	Kind GovernanceKind
	Path string
}

var governancePathReplacer = strings.NewReplacer("' ", "/", ":", "/", "'", "/")

// ParseGovernanceID decodes a governance id. Ids without a known prefix are
// treated as tally feeds.
func ParseGovernanceID(gid string) GovernanceSource {
	kind := GovernanceTally
	rest := gid
	for _, k := range []GovernanceKind{GovernanceSnapshot, GovernanceCompound, GovernanceTally} {
		if after, ok := strings.CutPrefix(gid, string(k)+":"); ok {
			kind, rest = k, after
			break
		}
	}
	return GovernanceSource{Kind: kind, Path: governancePathReplacer.Replace(rest)}
}

// URL returns the lowercased overview document URL for the source.
func (g GovernanceSource) URL(e llama.Endpoints) string {
	base := e.GovernanceTally
	switch g.Kind {
	case GovernanceSnapshot:
		base = e.GovernanceSnapshot
	case GovernanceCompound:
		base = e.GovernanceCompound
	}
	return strings.ToLower(base + "/" + g.Path + ".json")
}

// GovernanceURLs returns the feed URL of every governance source of the identity.
func (i *Identity) GovernanceURLs(e llama.Endpoints) []string {
	out := make([]string, 0, len(i.Governance))
	for _, g := range i.Governance {
		out = append(out, g.URL(e))
	}
	return out
}
