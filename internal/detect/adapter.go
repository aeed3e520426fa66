package detect

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"

	"spotwise-backend/internal/model"
	"spotwise-backend/internal/registry"
)

var (
	ErrBadIndex = errors.New("key is not a positional index")
	ErrBadBBox  = errors.New("bbox needs 4 numeric components")
)

// Adapter converts a detection response into spot records.
type Adapter struct {
	ids          *registry.IDGenerator
	notFreeLabel string
}

// NewAdapter creates an adapter. Regions labelled notFreeLabel are occupied;
// every other label is free.
func NewAdapter(ids *registry.IDGenerator, notFreeLabel string) *Adapter {
	return &Adapter{ids: ids, notFreeLabel: notFreeLabel}
}

type indexedRegion struct {
	key    string
	index  int
	region Region
}

// Ingest returns one spot per well-formed region in index order. Malformed
// records are skipped and reported.
func (a *Adapter) Ingest(res Result) ([]model.Spot, []RecordError) {
	var skipped []RecordError

	ordered := make([]indexedRegion, 0, len(res))
	for key, region := range res {
		idx, err := strconv.Atoi(key)
		// "01" and "1" would otherwise collide on the same index.
		if err != nil || idx < 0 || strconv.Itoa(idx) != key {
			skipped = append(skipped, RecordError{Key: key, Err: ErrBadIndex})
			continue
		}
		ordered = append(ordered, indexedRegion{key: key, index: idx, region: region})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

	spots := make([]model.Spot, 0, len(ordered))
	for _, r := range ordered {
		loc, err := midpoint(r.region.BBox)
		if err != nil {
			skipped = append(skipped, RecordError{Key: r.key, Err: err})
			continue
		}

		label := string(r.region.LabelID)
		if label == "" {
			label = r.region.LabelName
		}

		spots = append(spots, model.NewSpot(
			a.ids.Next("det-"+label),
			fmt.Sprintf("P%d", len(spots)+1),
			model.CategoryStandard,
			loc,
			model.SourceDetected,
			r.region.LabelName == a.notFreeLabel,
		))
	}

	// Map iteration order is random; keep the report stable.
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Key < skipped[j].Key })
	for _, e := range skipped {
		log.Printf("Skipping detection record: %v", e)
	}
	return spots, skipped
}

// midpoint returns the rounded centre of an [x0, y0, x1, y1] box.
func midpoint(raw json.RawMessage) (model.Location, error) {
	var parts []any
	if err := json.Unmarshal(raw, &parts); err != nil {
		return model.Location{}, fmt.Errorf("%w: %v", ErrBadBBox, err)
	}
	if len(parts) < 4 {
		return model.Location{}, fmt.Errorf("%w: got %d", ErrBadBBox, len(parts))
	}

	var c [4]float64
	for i := 0; i < 4; i++ {
		f, ok := parts[i].(float64)
		if !ok {
			return model.Location{}, fmt.Errorf("%w: component %d is %T", ErrBadBBox, i, parts[i])
		}
		c[i] = f
	}
	return model.Location{
		X: int(math.Round((c[0] + c[2]) / 2)),
		Y: int(math.Round((c[1] + c[3]) / 2)),
	}, nil
}
