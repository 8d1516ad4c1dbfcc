// Package synthetic generates deterministic demo data for a fresh
// installation. All randomness flows through one injected source so two
// generators built from the same seed produce identical fixtures.
package synthetic

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/hydronote/groundwatch/internal/domain"
	"github.com/hydronote/groundwatch/internal/scoring"
	"github.com/hydronote/groundwatch/internal/store"
)

var plainNames = []string{"Najafabad", "Borkhar", "Lenjanat", "Mahyar"}

var aquiferNames = []string{"Alluvial North", "Alluvial South", "Karst East"}

type Generator struct {
	rng   *rand.Rand
	orgID string
}

func NewGenerator(seed int64, orgID string) *Generator {
	return &Generator{
		rng:   rand.New(rand.NewSource(seed)),
		orgID: orgID,
	}
}

func (g *Generator) Plains() []domain.Plain {
	plains := make([]domain.Plain, 0, len(plainNames))
	for i, name := range plainNames {
		plains = append(plains, domain.Plain{
			ID:    fmt.Sprintf("plain-%03d", i+1),
			OrgID: g.orgID,
			Name:  name,
		})
	}

	return plains
}

func (g *Generator) Aquifers(plains []domain.Plain) []domain.Aquifer {
	aquifers := make([]domain.Aquifer, 0, len(plains)*len(aquiferNames))
	n := 0
	for _, p := range plains {
		for _, name := range aquiferNames {
			n++
			aquifers = append(aquifers, domain.Aquifer{
				ID:      fmt.Sprintf("aq-%03d", n),
				OrgID:   g.orgID,
				PlainID: p.ID,
				Name:    fmt.Sprintf("%s %s", p.Name, name),
			})
		}
	}

	return aquifers
}

// Wells spreads the requested count round-robin over the aquifers. Roughly
// one well in ten has no recorded observation yet.
func (g *Generator) Wells(aquifers []domain.Aquifer, count int) []domain.Well {
	wells := make([]domain.Well, 0, count)
	for i := 0; i < count; i++ {
		aq := aquifers[i%len(aquifers)]
		w := domain.Well{
			ID:               fmt.Sprintf("well-%03d", i+1),
			OrgID:            g.orgID,
			Name:             fmt.Sprintf("Well %03d", i+1),
			PlainID:          aq.PlainID,
			AquiferID:        aq.ID,
			RiskScore:        scoring.Round2(g.rng.Float64()),
			DataQualityScore: scoring.Round2(30 + g.rng.Float64()*70),
		}

		if g.rng.Float64() >= 0.1 {
			level := scoring.Round2(8 + g.rng.Float64()*40)
			w.LatestGwLevelM = &level
		}

		wells = append(wells, w)
	}

	return wells
}

// Seed persists a complete fixture set and returns the generated wells.
func (g *Generator) Seed(ctx context.Context, st *store.Store, wellCount int) ([]domain.Well, error) {
	plains := g.Plains()
	for i := range plains {
		if err := st.SavePlain(ctx, &plains[i]); err != nil {
			return nil, fmt.Errorf("seed plain %s: %w", plains[i].ID, err)
		}
	}

	aquifers := g.Aquifers(plains)
	for i := range aquifers {
		if err := st.SaveAquifer(ctx, &aquifers[i]); err != nil {
			return nil, fmt.Errorf("seed aquifer %s: %w", aquifers[i].ID, err)
		}
	}

	wells := g.Wells(aquifers, wellCount)
	for i := range wells {
		if err := st.SaveWell(ctx, &wells[i]); err != nil {
			return nil, fmt.Errorf("seed well %s: %w", wells[i].ID, err)
		}
	}

	return wells, nil
}
