package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pricehound/pricehound/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeStore struct {
	targets    []types.Target
	targetsErr error

	upserts   []string
	upsertErr map[string]error
}

func (f *fakeStore) ActiveTargets(context.Context) ([]types.Target, error) {
	return f.targets, f.targetsErr
}

func (f *fakeStore) UpsertPendingJob(_ context.Context, targetID string) error {
	if err := f.upsertErr[targetID]; err != nil {
		return err
	}
	f.upserts = append(f.upserts, targetID)
	return nil
}

func (f *fakeStore) UpdateJob(context.Context, string, string, string) error { return nil }
func (f *fakeStore) SavePriceObservation(context.Context, types.PriceObservation) error {
	return nil
}
func (f *fakeStore) CreateAlert(context.Context, string, string, map[string]any) error {
	return nil
}
func (f *fakeStore) LatestPrice(context.Context, string) (*types.LatestPrice, error) {
	return nil, nil
}

func TestRunOnceUpsertsEveryTarget(t *testing.T) {
	st := &fakeStore{targets: []types.Target{
		{ID: "t-1", Domain: "amazon.in"},
		{ID: "t-2", Domain: "flipkart.com"},
		{ID: "t-3", Domain: "example.com"},
	}}
	s := New(st, time.Minute, testLogger)

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 targets, got %d", n)
	}
	if len(st.upserts) != 3 {
		t.Errorf("expected 3 upserts, got %v", st.upserts)
	}
}

func TestRunOnceSkipsEmptyIDs(t *testing.T) {
	st := &fakeStore{targets: []types.Target{
		{ID: "t-1"},
		{ID: ""},
		{ID: "t-3"},
	}}
	s := New(st, time.Minute, testLogger)

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 targets counted, got %d", n)
	}
	if len(st.upserts) != 2 {
		t.Errorf("expected 2 upserts, got %v", st.upserts)
	}
}

func TestRunOnceContinuesPastUpsertFailure(t *testing.T) {
	st := &fakeStore{
		targets: []types.Target{
			{ID: "t-1"},
			{ID: "t-2"},
			{ID: "t-3"},
		},
		upsertErr: map[string]error{"t-2": errors.New("deadlock")},
	}
	s := New(st, time.Minute, testLogger)

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("cycle should not surface per-target failures: %v", err)
	}
	if len(st.upserts) != 2 {
		t.Errorf("expected the other 2 upserts, got %v", st.upserts)
	}
}

func TestRunOnceSurfacesReadFailure(t *testing.T) {
	st := &fakeStore{targetsErr: errors.New("connection refused")}
	s := New(st, time.Minute, testLogger)

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected read failure to surface")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	st := &fakeStore{}
	s := New(st, time.Hour, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
