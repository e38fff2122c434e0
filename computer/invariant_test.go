package computer_test

import (
	"math/rand"
	"testing"

	mapset "github.com/deckarep/golang-set"
	"github.com/stretchr/testify/require"

	"github.com/speedy-lex/neonucleus/computer"
)

// TestAddressUniquenessUnderInterleaving randomly interleaves
// NewComponent/RemoveComponent calls over a small pool of addresses and,
// after every step, checks that no two live components share an
// address (invariant 6). The live set is tracked with a mapset.Set so
// the assertion is a genuine set-uniqueness check rather than an O(n^2)
// hand-rolled loop.
func TestAddressUniquenessUnderInterleaving(t *testing.T) {
	c := newTestComputer(t)
	table := computer.NewTable("dummy", nil, nil, nil)

	addrs := []string{"a", "b", "c", "d"}
	live := mapset.NewSet()
	rng := rand.New(rand.NewSource(1))

	for step := 0; step < 500; step++ {
		addr := addrs[rng.Intn(len(addrs))]
		if rng.Intn(2) == 0 {
			comp := c.NewComponent(addr, 0, table, nil)
			if comp != nil {
				require.Falsef(t, live.Contains(addr), "NewComponent(%q) succeeded while address was already live", addr)
				live.Add(addr)
			} else {
				require.Truef(t, live.Contains(addr), "NewComponent(%q) was rejected but address was not live", addr)
			}
		} else {
			c.RemoveComponent(addr)
			live.Remove(addr)
		}

		seen := mapset.NewSet()
		for _, a := range addrs {
			if c.FindComponent(a) == nil {
				continue
			}
			require.Falsef(t, seen.Contains(a), "address %q is held by more than one live component", a)
			seen.Add(a)
		}
		require.True(t, seen.Equal(live), "live component set drifted from the tracked model at step %d", step)
	}
}
