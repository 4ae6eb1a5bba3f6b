package geo

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// State is a step of the Aggregator lifecycle.
type State int

// Aggregator states, in the only order they can be visited.
const (
	StateEmpty State = iota
	StatePhase1Running
	StatePhase1Done
	StatePhase2Running
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePhase1Running:
		return "phase1_running"
	case StatePhase1Done:
		return "phase1_done"
	case StatePhase2Running:
		return "phase2_running"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Phase names reported through Progress.
const (
	PhaseContainment = "containment"
	PhaseProximity   = "proximity"
)

// Progress is reported after each region (containment) or point
// (proximity) has been processed.
type Progress struct {
	Phase   string
	Done    int
	Total   int
	Claimed int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithResolver sets the proximity resolver. The default uses
// DefaultThresholdMeters.
func WithResolver(r Resolver) Option {
	return func(a *Aggregator) {
		a.resolver = r
	}
}

// WithConcurrency evaluates regions (containment) and points (proximity)
// on up to n goroutines. Results are merged in input order, so the output
// is identical to a sequential run.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithProgress registers a callback invoked from the calling goroutine.
func WithProgress(fn func(Progress)) Option {
	return func(a *Aggregator) {
		a.progress = fn
	}
}

// Aggregator owns the partition of points into regions. Points move from
// the pool into exactly one region set and never come back.
type Aggregator struct {
	regions     []Region
	resolver    Resolver
	concurrency int
	progress    func(Progress)

	state    State
	pool     []Point
	assigned map[int][]string
	matches  []Match
	stats    Stats
}

// NewAggregator prepares a run over points and regions. Duplicate point
// IDs keep their first occurrence.
func NewAggregator(points []Point, regions []Region, opts ...Option) *Aggregator {
	a := &Aggregator{
		regions:     regions,
		resolver:    NewResolver(DefaultThresholdMeters),
		concurrency: 1,
		assigned:    make(map[int][]string),
	}
	for _, opt := range opts {
		opt(a)
	}

	seen := make(map[string]struct{}, len(points))
	a.pool = make([]Point, 0, len(points))
	for _, p := range points {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		a.pool = append(a.pool, p)
	}
	a.stats.Points = len(a.pool)
	a.stats.Regions = len(regions)
	return a
}

// State returns the current lifecycle state.
func (a *Aggregator) State() State { return a.state }

// Pending returns the number of points still in the pool.
func (a *Aggregator) Pending() int { return len(a.pool) }

func (a *Aggregator) transition(from, to State) error {
	if a.state != from {
		return eris.Wrapf(ErrInvalidTransition, "geo: %s -> %s from %s", from, to, a.state)
	}
	a.state = to
	return nil
}

func (a *Aggregator) claim(regionID int, id string) {
	a.assigned[regionID] = append(a.assigned[regionID], id)
}

func (a *Aggregator) report(p Progress) {
	if a.progress != nil {
		a.progress(p)
	}
}

// Containment runs the first phase: regions are visited in input order
// and each claims the pooled points it contains. If ctx is cancelled the
// Aggregator stays in StatePhase1Running with a partial partition and every
// later call fails with ErrInvalidTransition; start over with a new one.
func (a *Aggregator) Containment(ctx context.Context) error {
	if err := a.transition(StateEmpty, StatePhase1Running); err != nil {
		return err
	}

	var err error
	if a.concurrency > 1 {
		err = a.containmentParallel(ctx)
	} else {
		err = a.containmentSequential(ctx)
	}
	if err != nil {
		return err
	}

	a.state = StatePhase1Done
	return nil
}

func (a *Aggregator) containmentSequential(ctx context.Context) error {
	for i, reg := range a.regions {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "geo: containment cancelled")
		}
		claimed := 0
		if reg.Polygon != nil && len(a.pool) > 0 {
			remaining := make([]Point, 0, len(a.pool))
			for _, p := range a.pool {
				if IsInside(p, reg.Polygon) {
					a.claim(reg.ID, p.ID)
					claimed++
					continue
				}
				remaining = append(remaining, p)
			}
			a.pool = remaining
		}
		a.stats.Contained += claimed
		a.report(Progress{Phase: PhaseContainment, Done: i + 1, Total: len(a.regions), Claimed: claimed})
	}
	return nil
}

// containmentParallel tests every region against the whole pool
// concurrently, then replays the hits in region order so the first region
// still wins.
func (a *Aggregator) containmentParallel(ctx context.Context) error {
	hits := make([][]int, len(a.regions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, reg := range a.regions {
		if reg.Polygon == nil {
			continue
		}
		g.Go(func() error {
			var idx []int
			for j, p := range a.pool {
				if j%256 == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				if IsInside(p, reg.Polygon) {
					idx = append(idx, j)
				}
			}
			hits[i] = idx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "geo: containment cancelled")
	}

	taken := make([]bool, len(a.pool))
	for i, reg := range a.regions {
		claimed := 0
		for _, j := range hits[i] {
			if taken[j] {
				continue
			}
			taken[j] = true
			a.claim(reg.ID, a.pool[j].ID)
			claimed++
		}
		a.stats.Contained += claimed
		a.report(Progress{Phase: PhaseContainment, Done: i + 1, Total: len(a.regions), Claimed: claimed})
	}

	remaining := make([]Point, 0, len(a.pool))
	for j, p := range a.pool {
		if !taken[j] {
			remaining = append(remaining, p)
		}
	}
	a.pool = remaining
	return nil
}

// Proximity runs the second phase over a snapshot of the pool left by
// Containment. Each point is matched against the full region set. A
// cancelled ctx leaves the Aggregator in StatePhase2Running for good, as
// with Containment.
func (a *Aggregator) Proximity(ctx context.Context) error {
	if err := a.transition(StatePhase1Done, StatePhase2Running); err != nil {
		return err
	}

	snapshot := a.pool
	found := make([]Candidate, len(snapshot))
	ok := make([]bool, len(snapshot))

	if a.concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.concurrency)
		for i, p := range snapshot {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				found[i], ok[i] = a.resolver.Resolve(p, a.regions)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "geo: proximity cancelled")
		}
	} else {
		for i, p := range snapshot {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "geo: proximity cancelled")
			}
			found[i], ok[i] = a.resolver.Resolve(p, a.regions)
		}
	}

	remaining := make([]Point, 0, len(snapshot))
	for i, p := range snapshot {
		claimed := 0
		if ok[i] {
			a.claim(found[i].RegionID, p.ID)
			a.matches = append(a.matches, Match{
				PointID:        p.ID,
				RegionID:       found[i].RegionID,
				DistanceMeters: found[i].DistanceMeters,
			})
			claimed = 1
		} else {
			remaining = append(remaining, p)
		}
		a.stats.Proximity += claimed
		a.report(Progress{Phase: PhaseProximity, Done: i + 1, Total: len(snapshot), Claimed: claimed})
	}
	a.pool = remaining
	a.stats.Unassigned = len(remaining)

	a.state = StateFinalized
	return nil
}

// Result returns a copy of the finalized partition.
func (a *Aggregator) Result() (*Result, error) {
	if a.state != StateFinalized {
		return nil, eris.Wrapf(ErrInvalidTransition, "geo: result requested in state %s", a.state)
	}

	res := &Result{
		Assignments: make(map[int][]string, len(a.assigned)),
		Unassigned:  make([]string, 0, len(a.pool)),
		Matches:     append([]Match(nil), a.matches...),
		Stats:       a.stats,
	}
	for id, codes := range a.assigned {
		res.Assignments[id] = append([]string(nil), codes...)
	}
	for _, p := range a.pool {
		res.Unassigned = append(res.Unassigned, p.ID)
	}
	return res, nil
}

// Run executes both phases and returns the result.
func (a *Aggregator) Run(ctx context.Context) (*Result, error) {
	if err := a.Containment(ctx); err != nil {
		return nil, err
	}
	if err := a.Proximity(ctx); err != nil {
		return nil, err
	}
	return a.Result()
}

// Classify partitions points over regions in one call.
func Classify(ctx context.Context, points []Point, regions []Region, opts ...Option) (*Result, error) {
	return NewAggregator(points, regions, opts...).Run(ctx)
}
