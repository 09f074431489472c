package seqdir

import (
	"context"
	"time"

	"github.com/grailbio/base/file"
)

// State is a run directory's lifecycle classification. It is a single
// tagged variant rather than distinct per-state types: the only per-state
// data the pipeline needs is when the directory entered that state, and a
// switch over Kind is simpler than a family of wrapper types for a state
// machine this small.
type State struct {
	Kind  Kind
	Since time.Time
}

// Kind enumerates the lifecycle states a run directory can be in.
type Kind int

const (
	Unavailable Kind = iota
	Sequencing
	Available
	Transferring
	Failed
)

func (k Kind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case Sequencing:
		return "sequencing"
	case Available:
		return "available"
	case Transferring:
		return "transferring"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	completionMarker = "RunCompletionStatus.xml"
	transferMarker    = "CopyComplete.txt"
)

// Poll probes root's filesystem state and returns the run directory's
// current lifecycle state. It performs no locking or caching; callers that
// poll repeatedly are expected to compare against their previously-seen
// State themselves.
func Poll(ctx context.Context, root string, prev State) State {
	if _, err := file.Stat(ctx, root); err != nil {
		return transition(prev, Unavailable)
	}

	if _, err := file.Stat(ctx, transferPath(root)); err == nil {
		return transition(prev, Transferring)
	}

	if _, err := file.Stat(ctx, completionPath(root)); err != nil {
		return transition(prev, Sequencing)
	}

	if _, err := Discover(ctx, root); err != nil {
		return transition(prev, Failed)
	}
	return transition(prev, Available)
}

func transition(prev State, kind Kind) State {
	if prev.Kind == kind {
		return prev
	}
	return State{Kind: kind, Since: time.Now()}
}

func completionPath(root string) string { return root + "/" + completionMarker }
func transferPath(root string) string   { return root + "/" + transferMarker }
