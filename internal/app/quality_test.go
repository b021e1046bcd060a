package app

import (
	"context"
	"encoding/json"
	"testing"

	"lingx/api/internal/quality"
	"lingx/api/internal/store"
)

// Re-running batch evaluation over an already-scored branch queues nothing:
// every translation is a cache hit.
func TestBatchEvaluateFullyCachedBranch(t *testing.T) {
	var activities []store.ActivityEvent
	fs := &fakeStore{
		listBranchEvaluationTargetsFn: func(_ context.Context, branchID string, _ quality.Config) (int, int, []string, error) {
			if branchID != "br_1" {
				t.Fatalf("unexpected branch %s", branchID)
			}
			return 9, 9, nil, nil
		},
		insertActivityFn: func(_ context.Context, event store.ActivityEvent) error {
			activities = append(activities, event)
			return nil
		},
	}

	svc, _ := newTestService(fs)
	payload, err := svc.BatchEvaluate(context.Background(), ownerSession(), "br_1")
	if err != nil {
		t.Fatalf("BatchEvaluate() error = %v", err)
	}

	if payload["total"] != 9 || payload["cached"] != 9 || payload["queued"] != 0 {
		t.Fatalf("expected {total: 9, cached: 9, queued: 0}, got %v", payload)
	}
	for _, event := range activities {
		if event.Type == "quality.batch.truncated" {
			t.Fatal("a fully cached batch must not report truncation")
		}
	}
}

// The test service wires an unstarted runner with a queue of four slots, so a
// six-item batch queues four and records the shortfall.
func TestBatchEvaluateReportsQueueTruncation(t *testing.T) {
	var truncated *store.ActivityEvent
	fs := &fakeStore{
		listBranchEvaluationTargetsFn: func(_ context.Context, _ string, _ quality.Config) (int, int, []string, error) {
			return 10, 4, []string{"tr_1", "tr_2", "tr_3", "tr_4", "tr_5", "tr_6"}, nil
		},
		insertActivityFn: func(_ context.Context, event store.ActivityEvent) error {
			if event.Type == "quality.batch.truncated" {
				copied := event
				truncated = &copied
			}
			return nil
		},
	}

	svc, _ := newTestService(fs)
	payload, err := svc.BatchEvaluate(context.Background(), ownerSession(), "br_1")
	if err != nil {
		t.Fatalf("BatchEvaluate() error = %v", err)
	}

	if payload["total"] != 10 || payload["cached"] != 4 || payload["queued"] != 4 {
		t.Fatalf("expected {total: 10, cached: 4, queued: 4}, got %v", payload)
	}
	if truncated == nil {
		t.Fatal("expected a quality.batch.truncated activity event")
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(truncated.Metadata), &meta); err != nil {
		t.Fatalf("activity metadata is not JSON: %v", err)
	}
	if meta["requested"] != float64(6) || meta["queued"] != float64(4) {
		t.Fatalf("expected truncation of 6 requested to 4 queued, got %v", meta)
	}
}
