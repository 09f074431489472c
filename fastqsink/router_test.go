package fastqsink

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqtools/cbcldemux/demux"
)

// fakeSink records every record it receives, in arrival order, so tests can
// assert the router's single-writer-per-destination ordering guarantee.
type fakeSink struct {
	mu      sync.Mutex
	records []demux.WriteRecord
	closed  bool
	failOn  string // if non-empty, Write returns an error for this record ID
}

func (s *fakeSink) Write(rec demux.WriteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && rec.ID == s.failOn {
		return fmt.Errorf("fakeSink: forced write failure for %s", rec.ID)
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeFactory opens one fakeSink per distinct destination and records which
// destinations were opened, so tests can check lazy-open behavior.
type fakeFactory struct {
	mu         sync.Mutex
	sinks      map[string]*fakeSink
	opened     []string
	failOn     string // destination name Open should fail for
	sinkFailOn string // record ID each newly opened sink should fail to write
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{sinks: map[string]*fakeSink{}}
}

func (f *fakeFactory) Open(ctx context.Context, destination string) (Sink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if destination == f.failOn {
		return nil, fmt.Errorf("fakeFactory: forced open failure for %s", destination)
	}
	f.opened = append(f.opened, destination)
	s := &fakeSink{failOn: f.sinkFailOn}
	f.sinks[destination] = s
	return s, nil
}

func TestRouterDispatchesByDestinationAndPreservesOrder(t *testing.T) {
	factory := newFakeFactory()
	router := &Router{Factory: factory}

	records := make(chan demux.WriteRecord)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		router.Run(context.Background(), records, stop)
		close(done)
	}()

	want := []demux.WriteRecord{
		{Destination: "A_R1", ID: "1"},
		{Destination: "B_R1", ID: "1"},
		{Destination: "A_R1", ID: "2"},
		{Destination: "B_R1", ID: "2"},
	}
	for _, r := range want {
		records <- r
	}
	close(records)
	<-done

	require.Contains(t, factory.sinks, "A_R1")
	require.Contains(t, factory.sinks, "B_R1")
	assert.Equal(t, []demux.WriteRecord{want[0], want[2]}, factory.sinks["A_R1"].records)
	assert.Equal(t, []demux.WriteRecord{want[1], want[3]}, factory.sinks["B_R1"].records)
	assert.True(t, factory.sinks["A_R1"].closed)
	assert.True(t, factory.sinks["B_R1"].closed)
}

func TestRouterOpensSinksLazily(t *testing.T) {
	factory := newFakeFactory()
	router := &Router{Factory: factory}

	records := make(chan demux.WriteRecord)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		router.Run(context.Background(), records, stop)
		close(done)
	}()

	assert.Empty(t, factory.opened)
	records <- demux.WriteRecord{Destination: "only", ID: "1"}
	close(records)
	<-done

	assert.Equal(t, []string{"only"}, factory.opened)
}

func TestRouterDropsRecordsAfterStop(t *testing.T) {
	factory := newFakeFactory()
	var dropped []demux.WriteRecord
	router := &Router{
		Factory:              factory,
		DroppedAfterShutdown: func(rec demux.WriteRecord) { dropped = append(dropped, rec) },
	}

	records := make(chan demux.WriteRecord)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		router.Run(context.Background(), records, stop)
		close(done)
	}()

	records <- demux.WriteRecord{Destination: "A", ID: "before-stop"}
	close(stop)
	// Run checks stop before dispatching each record, so the record below,
	// sent after stop is closed, is dropped rather than written; the send
	// still must not block forever since Run keeps draining records until
	// the channel closes.
	records <- demux.WriteRecord{Destination: "A", ID: "after-stop"}
	close(records)
	<-done

	require.Contains(t, factory.sinks, "A")
	assert.True(t, factory.sinks["A"].closed)
	require.Len(t, dropped, 1)
	assert.Equal(t, "after-stop", dropped[0].ID)
}

func TestRouterReportsWriteErrorAndReopensSink(t *testing.T) {
	factory := newFakeFactory()
	factory.sinkFailOn = "will-fail"
	var errs []string
	router := &Router{
		Factory: factory,
		OnError: func(destination string, err error) { errs = append(errs, destination) },
	}

	records := make(chan demux.WriteRecord)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		router.Run(context.Background(), records, stop)
		close(done)
	}()

	// The first sink opened for "bad" fails its only write; the router must
	// report the error, close and drop that sink, then open a fresh one for
	// the next record to the same destination (the fresh sink also fails on
	// "will-fail", but that next record's ID does not match it).
	records <- demux.WriteRecord{Destination: "bad", ID: "will-fail"}
	records <- demux.WriteRecord{Destination: "bad", ID: "will-succeed"}
	close(records)
	<-done

	assert.Equal(t, []string{"bad"}, errs)
	assert.Equal(t, []string{"bad", "bad"}, factory.opened)
}

func TestRouterReportsOpenError(t *testing.T) {
	factory := newFakeFactory()
	factory.failOn = "unopenable"
	var errs []string
	router := &Router{
		Factory: factory,
		OnError: func(destination string, err error) { errs = append(errs, destination) },
	}

	records := make(chan demux.WriteRecord)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		router.Run(context.Background(), records, stop)
		close(done)
	}()

	records <- demux.WriteRecord{Destination: "unopenable", ID: "1"}
	close(records)
	<-done

	assert.Equal(t, []string{"unopenable"}, errs)
}
