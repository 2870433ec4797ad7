package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/fpang/transcript-insight/internal/transcript"
)

type harness struct {
	cache       *memCache
	captions    *fakeCaptions
	audio       *fakeAudio
	checkpoints *memCheckpoints
	scheduler   *Scheduler
	progress    []int
}

func newHarness(captioned map[string]bool, timeouts map[string]bool) *harness {
	h := &harness{
		cache:       newMemCache(),
		captions:    &fakeCaptions{has: captioned},
		audio:       &fakeAudio{timeout: timeouts},
		checkpoints: &memCheckpoints{},
	}
	resolver := NewResolver(h.cache, h.captions, h.audio, &fakeSTT{cache: h.cache}, "en")
	var mu sync.Mutex
	h.scheduler = NewScheduler(resolver, NewTracker("run-test", h.checkpoints), func(pos, total int, o transcript.Outcome) {
		mu.Lock()
		h.progress = append(h.progress, pos)
		mu.Unlock()
	})
	return h
}

func TestPartialFailureIsolation(t *testing.T) {
	items := videos(5)
	h := newHarness(nil, map[string]bool{items[2].ID: true})

	outcomes := h.scheduler.Run(context.Background(), items, RunOptions{Workers: 3, AllowSTT: true, Languages: []string{"en"}})

	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Video.ID != items[i].ID {
			t.Errorf("expected outcomes ordered by position, got %s at %d", o.Video.ID, i)
		}
		if i == 2 {
			if o.Success || o.Kind != transcript.KindTimeout {
				t.Errorf("expected item 3 to fail with timeout, got %+v", o)
			}
			continue
		}
		if !o.Success {
			t.Errorf("expected %s to succeed, got %s", o.Video.ID, o.Error)
		}
	}

	cp := h.checkpoints.last()
	if cp.CompletedCount != 4 || len(cp.CompletedIDs) != 4 {
		t.Errorf("expected 4 completed in checkpoint, got %+v", cp)
	}
	if len(cp.Failed) != 1 {
		t.Fatalf("expected 1 failed entry, got %+v", cp.Failed)
	}
	f := cp.Failed[0]
	if f.Index != 2 || f.ItemID != items[2].ID || !strings.Contains(f.Error, "timed out") {
		t.Errorf("unexpected failed entry %+v", f)
	}
	if len(h.checkpoints.writes) != 5 {
		t.Errorf("expected a checkpoint write per item, got %d", len(h.checkpoints.writes))
	}
	if len(h.progress) != 5 {
		t.Errorf("expected 5 progress callbacks, got %d", len(h.progress))
	}
}

func TestResumeFromOffset(t *testing.T) {
	items := videos(6)
	captioned := map[string]bool{items[0].ID: true, items[3].ID: true, items[4].ID: true}
	const k = 2

	full := newHarness(captioned, nil)
	full.scheduler.Run(context.Background(), items, RunOptions{Workers: 2, AllowSTT: true, Languages: []string{"en"}})

	resumed := newHarness(captioned, nil)
	outcomes := resumed.scheduler.Run(context.Background(), items, RunOptions{Workers: 2, StartFrom: k, AllowSTT: true, Languages: []string{"en"}})

	if len(outcomes) != len(items)-k {
		t.Fatalf("expected %d outcomes, got %d", len(items)-k, len(outcomes))
	}
	for i, o := range outcomes {
		if o.Video.ID != items[k+i].ID {
			t.Errorf("expected %s at %d, got %s", items[k+i].ID, i, o.Video.ID)
		}
	}

	want := full.cache.ids()
	for _, v := range items[:k] {
		delete(want, v.ID)
	}
	got := resumed.cache.ids()
	if len(got) != len(want) {
		t.Fatalf("expected cache %v, got %v", want, got)
	}
	for id := range want {
		if !got[id] {
			t.Errorf("missing %s in resumed cache", id)
		}
	}
}

func TestResumeUsesListingIndex(t *testing.T) {
	// Index 1 failed to list, so the slice has a gap.
	items := []transcript.Video{
		{ID: "vid00", Index: 0},
		{ID: "vid02", Index: 2},
		{ID: "vid03", Index: 3},
	}
	h := newHarness(nil, map[string]bool{"vid03": true})

	outcomes := h.scheduler.Run(context.Background(), items, RunOptions{Workers: 2, StartFrom: 2, AllowSTT: true, Languages: []string{"en"}})

	if len(outcomes) != 2 || outcomes[0].Video.ID != "vid02" || outcomes[1].Video.ID != "vid03" {
		t.Fatalf("expected vid02 and vid03, got %+v", outcomes)
	}
	cp := h.checkpoints.last()
	if len(cp.Failed) != 1 || cp.Failed[0].Index != 3 {
		t.Errorf("expected failure recorded at listing index 3, got %+v", cp.Failed)
	}
}

func TestWorkerCountInvariance(t *testing.T) {
	items := videos(12)
	captioned := map[string]bool{}
	timeouts := map[string]bool{}
	for i, v := range items {
		switch i % 4 {
		case 0:
			captioned[v.ID] = true
		case 1:
			timeouts[v.ID] = true
		}
	}

	var baseline *transcript.Tally
	for _, workers := range []int{1, 3, 8} {
		h := newHarness(captioned, timeouts)
		outcomes := h.scheduler.Run(context.Background(), items, RunOptions{Workers: workers, AllowSTT: true, Languages: []string{"en"}})
		tally := transcript.Count(outcomes)
		if baseline == nil {
			baseline = &tally
			continue
		}
		if tally != *baseline {
			t.Errorf("workers=%d: expected %+v, got %+v", workers, *baseline, tally)
		}
	}
	if baseline.Successful != 9 || baseline.Failed != 3 {
		t.Errorf("unexpected baseline tally %+v", *baseline)
	}
}

func TestRunWithoutSpeechToTextRecordsNeedsSpeech(t *testing.T) {
	items := videos(3)
	h := newHarness(map[string]bool{items[1].ID: true}, nil)

	outcomes := h.scheduler.Run(context.Background(), items, RunOptions{Workers: 3, Languages: []string{"en"}})
	tally := transcript.Count(outcomes)
	if tally.Successful != 1 || tally.NeedsSpeechToText != 2 {
		t.Errorf("unexpected tally %+v", tally)
	}
	if h.audio.calls != 0 {
		t.Errorf("expected no audio acquisition, got %d", h.audio.calls)
	}
	cp := h.checkpoints.last()
	if len(cp.Failed) != 2 || cp.Failed[0].Kind != string(transcript.KindNeedsSpeechToText) {
		t.Errorf("expected needs-speech-to-text entries under failed, got %+v", cp.Failed)
	}
}

func TestRunSkipsCachedItemsOnRerun(t *testing.T) {
	items := videos(4)
	h := newHarness(nil, nil)
	opts := RunOptions{Workers: 2, AllowSTT: true, Languages: []string{"en"}}

	h.scheduler.Run(context.Background(), items, opts)
	acquisitions := h.audio.calls
	captionCalls := h.captions.calls

	outcomes := h.scheduler.Run(context.Background(), items, opts)
	for _, o := range outcomes {
		if !o.Success || !o.Cached {
			t.Errorf("expected cached success on rerun, got %+v", o)
		}
	}
	if h.audio.calls != acquisitions || h.captions.calls != captionCalls {
		t.Errorf("expected no remote work on rerun")
	}
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	writer := &memCheckpoints{}
	tracker := NewTracker("run", writer)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := transcript.Video{ID: fmt.Sprintf("v%d", i)}
			if i%5 == 0 {
				tracker.Record(context.Background(), i, transcript.Failed(v, transcript.KindTranscription, "boom"))
				return
			}
			tracker.Record(context.Background(), i, transcript.Succeeded(v, nil, false))
		}()
	}
	wg.Wait()

	snap := tracker.Snapshot()
	if snap.CompletedCount != 40 || len(snap.Failed) != 10 {
		t.Errorf("expected 40 completed and 10 failed, got %d / %d", snap.CompletedCount, len(snap.Failed))
	}
	if len(writer.writes) != 50 {
		t.Fatalf("expected 50 writes, got %d", len(writer.writes))
	}
	for i, w := range writer.writes {
		if got := w.CompletedCount + len(w.Failed); got != i+1 {
			t.Errorf("write %d carries %d items, expected %d", i, got, i+1)
		}
	}
}
