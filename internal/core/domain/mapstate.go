package domain

// QueryPhase is the state of a running query.
type QueryPhase int32

const (
	PhaseIdle QueryPhase = iota
	PhasePlanning
	PhaseFetching
	PhaseReconciling
)

func (p QueryPhase) String() string {
	switch p {
	case PhasePlanning:
		return "planning_files"
	case PhaseFetching:
		return "fetching"
	case PhaseReconciling:
		return "reconciling"
	default:
		return "idle"
	}
}

// QueryHooks receives phase changes and progress while a query runs.
// Either field may be nil.
type QueryHooks struct {
	OnPhase    func(QueryPhase)
	OnProgress func(percent int)
}

func (h QueryHooks) Phase(p QueryPhase) {
	if h.OnPhase != nil {
		h.OnPhase(p)
	}
}

func (h QueryHooks) Progress(percent int) {
	if h.OnProgress != nil {
		h.OnProgress(percent)
	}
}

// EngineResult is the raw output of planning and fetching one query.
type EngineResult struct {
	Files     []FilePlan
	Times     map[string]float64
	RowGroups int
	BytesRead int64
}

// MapFeature is a rendered feature reported by the map under the pointer.
type MapFeature struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties,omitempty"`
}

// FeatureState is a partial update of one feature's render state. Nil
// fields are left unchanged.
type FeatureState struct {
	ID     string       `json:"id"`
	Bucket *ColorBucket `json:"bucket,omitempty"`
	Hover  *bool        `json:"hover,omitempty"`
}

// BucketState returns an update that sets only the bucket.
func BucketState(id string, b ColorBucket) FeatureState {
	return FeatureState{ID: id, Bucket: &b}
}

// HoverState returns an update that sets only the hover flag.
func HoverState(id string, on bool) FeatureState {
	return FeatureState{ID: id, Hover: &on}
}

// Diff is what one reconciliation changed on a layer.
type Diff struct {
	Layer   Geography     `json:"layer"`
	Cleared []string      `json:"cleared"`
	Set     []Destination `json:"set"`
}

// Updates converts the diff into feature-state updates, clears first.
func (d Diff) Updates() []FeatureState {
	out := make([]FeatureState, 0, len(d.Cleared)+len(d.Set))
	for _, id := range d.Cleared {
		out = append(out, BucketState(id, BucketNone))
	}
	for _, dst := range d.Set {
		b := BucketNone
		if dst.Bucket != nil {
			b = *dst.Bucket
		}
		out = append(out, BucketState(dst.ID, b))
	}
	return out
}
