package quality

import (
	"context"
	"testing"
	"time"
)

// UpsertScore signals instead of storing so the test can wait for the
// background worker without sharing state with it.
type signalScores struct {
	done chan string
}

func (s *signalScores) GetScore(_ context.Context, _ string) (*Score, error) { return nil, nil }

func (s *signalScores) UpsertScore(_ context.Context, score Score) error {
	s.done <- score.TranslationID
	return nil
}

// Enqueue never blocks: a full queue and a stopped runner both report the
// item as not queued.
func TestRunnerEnqueueNeverBlocks(t *testing.T) {
	r := NewRunner(2)
	cfg := Config{}

	if !r.Enqueue("tr_1", cfg) || !r.Enqueue("tr_2", cfg) {
		t.Fatal("expected the first two items to fit the queue")
	}
	if r.Enqueue("tr_3", cfg) {
		t.Error("expected Enqueue to refuse once the queue is full")
	}

	r.Stop()
	if r.Enqueue("tr_4", cfg) {
		t.Error("expected Enqueue to refuse after Stop")
	}
}

func TestRunnerEvaluatesQueuedTranslations(t *testing.T) {
	texts := &fakeTexts{byID: map[string]TranslationText{
		"tr_1": {ID: "tr_1", Language: "de", SourceText: "Hello {name}!", TargetText: "Hallo {name}!"},
	}}
	scores := &signalScores{done: make(chan string, 1)}
	engine := NewEngine(texts, scores, nil)

	r := NewRunner(4)
	if !r.Enqueue("tr_1", Config{}) {
		t.Fatal("Enqueue failed on an empty queue")
	}
	r.Start(engine)
	defer r.Stop()

	select {
	case id := <-scores.done:
		if id != "tr_1" {
			t.Errorf("evaluated %s, want tr_1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued translation was never evaluated")
	}
}
