package registry

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"spotwise-backend/internal/model"
)

const (
	gridColumns        = 5
	mockOccupiedChance = 0.3
	mockReservedChance = 0.2
	mockUserID         = "mock"
)

// MockGenerator produces the startup registry and the filler spots used by
// reconciliation.
type MockGenerator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	ids   *IDGenerator
	codes *CodeGenerator
	now   func() time.Time
}

// NewMockGenerator creates a generator with a seeded random source.
func NewMockGenerator(seed uint64, ids *IDGenerator, codes *CodeGenerator) *MockGenerator {
	return &MockGenerator{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		ids:   ids,
		codes: codes,
		now:   time.Now,
	}
}

// Generate returns n mock spots laid out on a five-column grid. Labels run
// A1..A5, B1..B5 and so on.
func (g *MockGenerator) Generate(n int) []model.Spot {
	g.mu.Lock()
	defer g.mu.Unlock()

	spots := make([]model.Spot, 0, n)
	for i := 0; i < n; i++ {
		spot := model.NewSpot(
			g.ids.Next("spot"),
			gridLabel(i),
			categoryFor(i),
			gridLocation(i),
			model.SourceMock,
			g.rng.Float64() < mockOccupiedChance,
		)
		if g.rng.Float64() < mockReservedChance {
			now := g.now()
			spot = spot.WithReservation(model.Reservation{
				Code:            g.codes.Next(),
				DurationMinutes: 60,
				ArrivalTime:     now.Add(15 * time.Minute),
				UserID:          mockUserID,
				CreatedAt:       now,
			})
		}
		spots = append(spots, spot)
	}
	return spots
}

// Filler returns count unreserved filler spots. offset is the number of real
// spots ahead of them, so labels continue the P<n> numbering.
func (g *MockGenerator) Filler(count, offset int) []model.Spot {
	g.mu.Lock()
	defer g.mu.Unlock()

	spots := make([]model.Spot, 0, count)
	for i := 0; i < count; i++ {
		pos := offset + i
		spots = append(spots, model.NewSpot(
			g.ids.Next("fill"),
			fmt.Sprintf("P%d", pos+1),
			categoryFor(pos),
			gridLocation(pos),
			model.SourceMock,
			g.rng.Float64() < mockOccupiedChance,
		))
	}
	return spots
}

func gridLabel(i int) string {
	row := i / gridColumns
	if row >= 26 {
		return fmt.Sprintf("P%d", i+1)
	}
	return fmt.Sprintf("%c%d", 'A'+row, i%gridColumns+1)
}

func gridLocation(i int) model.Location {
	return model.Location{X: i % gridColumns, Y: i / gridColumns}
}

func categoryFor(i int) model.Category {
	switch {
	case i%10 == 0:
		return model.CategoryHandicap
	case i%5 == 0:
		return model.CategoryElectric
	default:
		return model.CategoryStandard
	}
}
