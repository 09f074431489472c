package fastqsink

import (
	"context"

	"github.com/seqtools/cbcldemux/demux"
)

// Router is the write router (spec §4.F): the single consumer of the
// pipeline's WriteRecord queue. It dispatches by Destination into one
// single-writer Sink per destination, opened lazily on first use and
// closed once the input queue is closed and drained (or once stop fires).
type Router struct {
	Factory SinkFactory
	// OnError receives every non-fatal per-destination error (an open or
	// write failure aborts only that destination's sink).
	OnError func(destination string, err error)
	// DroppedAfterShutdown is invoked for every record that arrives after
	// the router has already torn its sinks down in response to stop.
	DroppedAfterShutdown func(rec demux.WriteRecord)
}

// Run drains records until the channel is closed. Once stop fires it
// closes every open sink and hands every further record to
// DroppedAfterShutdown instead of writing it; stop is checked before each
// record is dispatched. Either way it only returns after records is fully
// drained, so upstream senders never block on a closed channel.
func (r *Router) Run(ctx context.Context, records <-chan demux.WriteRecord, stop <-chan struct{}) {
	sinks := map[string]Sink{}
	shuttingDown := false

	closeAll := func() {
		for dest, s := range sinks {
			if err := s.Close(); err != nil {
				r.reportError(dest, err)
			}
		}
		sinks = map[string]Sink{}
	}

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				closeAll()
				return
			}
			if !shuttingDown {
				select {
				case <-stop:
					shuttingDown = true
					closeAll()
				default:
				}
			}
			if shuttingDown {
				if r.DroppedAfterShutdown != nil {
					r.DroppedAfterShutdown(rec)
				}
				continue
			}
			r.dispatch(ctx, rec, sinks)
		case <-stop:
			if !shuttingDown {
				shuttingDown = true
				closeAll()
			}
		}
	}
}

func (r *Router) dispatch(ctx context.Context, rec demux.WriteRecord, sinks map[string]Sink) {
	s, ok := sinks[rec.Destination]
	if !ok {
		var err error
		s, err = r.Factory.Open(ctx, rec.Destination)
		if err != nil {
			r.reportError(rec.Destination, err)
			return
		}
		sinks[rec.Destination] = s
	}
	if err := s.Write(rec); err != nil {
		r.reportError(rec.Destination, err)
		_ = s.Close()
		delete(sinks, rec.Destination)
	}
}

func (r *Router) reportError(destination string, err error) {
	if r.OnError != nil {
		r.OnError(destination, err)
	}
}
