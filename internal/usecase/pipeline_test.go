package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"DocQualityAnalyzer/internal/domain"
	"DocQualityAnalyzer/internal/provider"
	"DocQualityAnalyzer/internal/quality"
)

// fixedProvider answers every evaluation with the same verdict kind and
// every title request with a canned response.
type fixedProvider struct {
	name     string
	kind     domain.VerdictKind
	title    string
	titleErr error
	panics   bool
}

func (f *fixedProvider) Name() string { return f.name }

func (f *fixedProvider) Evaluate(ctx context.Context, content, prompt, documentID string) domain.Verdict {
	if f.panics {
		panic("provider exploded")
	}
	return domain.Verdict{Kind: f.kind, Provider: f.name, RawText: string(f.kind)}
}

func (f *fixedProvider) GenerateTitle(ctx context.Context, prompt, content string) (string, error) {
	return f.title, f.titleErr
}

type storeCall struct {
	op    string
	docID string
	tagID int
	title string
}

// fakeDocStore records every action and can fail selected operations.
type fakeDocStore struct {
	calls     []storeCall
	tagErr    error
	renameErr error
	failDocs  map[string]bool
}

func (f *fakeDocStore) FetchDocuments(ctx context.Context, maxDocuments int) ([]domain.Document, error) {
	return nil, nil
}

func (f *fakeDocStore) TagDocument(ctx context.Context, documentID string, tagID int) error {
	f.calls = append(f.calls, storeCall{op: "tag", docID: documentID, tagID: tagID})
	if f.tagErr != nil && (f.failDocs == nil || f.failDocs[documentID]) {
		return f.tagErr
	}
	return nil
}

func (f *fakeDocStore) RenameDocument(ctx context.Context, documentID string, newTitle string) error {
	f.calls = append(f.calls, storeCall{op: "rename", docID: documentID, title: newTitle})
	return f.renameErr
}

// fakeCheckpoint keeps records in memory.
type fakeCheckpoint struct {
	records   map[string]domain.DocumentRecord
	appendErr error
}

func newFakeCheckpoint() *fakeCheckpoint {
	return &fakeCheckpoint{records: make(map[string]domain.DocumentRecord)}
}

func (f *fakeCheckpoint) IsProcessed(documentID string) bool {
	_, ok := f.records[documentID]
	return ok
}

func (f *fakeCheckpoint) Append(record domain.DocumentRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records[record.DocumentID] = record
	return nil
}

func (f *fakeCheckpoint) Summary() domain.CheckpointSummary { return domain.CheckpointSummary{} }

func (f *fakeCheckpoint) Clear() error {
	f.records = make(map[string]domain.DocumentRecord)
	return nil
}

func doc(id, content string, tags ...int) domain.Document {
	return domain.Document{ID: id, Title: "doc " + id, Content: content, Tags: tags}
}

func newTestPipeline(store *fakeDocStore, checkpoint *fakeCheckpoint, titler provider.Provider, opts Options, providers ...provider.Provider) *Pipeline {
	return NewPipeline(PipelineDeps{
		Store:      store,
		Checkpoint: checkpoint,
		Ensemble:   quality.NewEnsemble("prompt: ", nil),
		Providers:  providers,
		Titler:     titler,
	}, opts)
}

func TestRunTagsByConsensus(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	checkpoint := newFakeCheckpoint()
	high := &fixedProvider{name: "a", kind: domain.KindHighQuality, title: "Generated Title"}

	pipeline := newTestPipeline(store, checkpoint, high,
		Options{HighQualityTagID: 7, LowQualityTagID: 8},
		high, &fixedProvider{name: "b", kind: domain.KindHighQuality})

	stats, err := pipeline.Run(context.Background(), []domain.Document{doc("1", "content")})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.HighQuality != 1 || stats.Processed != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	if len(store.calls) != 1 || store.calls[0].op != "tag" || store.calls[0].tagID != 7 {
		t.Fatalf("store calls = %+v, want one tag with id 7", store.calls)
	}

	record, ok := checkpoint.records["1"]
	if !ok {
		t.Fatal("record not appended to checkpoint")
	}
	if record.Verdict != domain.KindHighQuality || !record.ConsensusReached {
		t.Fatalf("record = %+v", record)
	}
	if record.ProcessedAt.IsZero() {
		t.Fatal("record missing processed timestamp")
	}
}

func TestRunNoConsensusLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	checkpoint := newFakeCheckpoint()

	pipeline := newTestPipeline(store, checkpoint, nil, Options{},
		&fixedProvider{name: "a", kind: domain.KindHighQuality},
		&fixedProvider{name: "b", kind: domain.KindLowQuality})

	stats, err := pipeline.Run(context.Background(), []domain.Document{doc("1", "content")})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.NoConsensus != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(store.calls) != 0 {
		t.Fatalf("store was touched without consensus: %+v", store.calls)
	}

	record := checkpoint.records["1"]
	if record.ConsensusReached {
		t.Fatal("record claims consensus")
	}
	if record.Error != "" {
		t.Fatalf("no-consensus record carries error %q", record.Error)
	}
}

func TestRunRenamesHighQualityDocuments(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	checkpoint := newFakeCheckpoint()
	titler := &fixedProvider{name: "a", kind: domain.KindHighQuality, title: `Quarterly Figures`}

	pipeline := newTestPipeline(store, checkpoint, titler,
		Options{HighQualityTagID: 7, RenameDocuments: true, TitlePrompt: "title: "},
		titler)

	if _, err := pipeline.Run(context.Background(), []domain.Document{doc("1", "content words here")}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(store.calls) != 2 || store.calls[1].op != "rename" {
		t.Fatalf("store calls = %+v, want tag then rename", store.calls)
	}
	if store.calls[1].title != "Quarterly Figures" {
		t.Fatalf("rename title = %q", store.calls[1].title)
	}
	if checkpoint.records["1"].NewTitle != "Quarterly Figures" {
		t.Fatalf("record title = %q", checkpoint.records["1"].NewTitle)
	}
}

func TestRunTitleFailureKeepsTaggedOutcome(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	checkpoint := newFakeCheckpoint()
	titler := &fixedProvider{name: "a", kind: domain.KindHighQuality, titleErr: errors.New("model offline")}

	pipeline := newTestPipeline(store, checkpoint, titler,
		Options{HighQualityTagID: 7, RenameDocuments: true},
		titler)

	stats, err := pipeline.Run(context.Background(), []domain.Document{doc("1", "the first five words matter here")})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// The tag was applied before the title step failed, so the document
	// still counts as high quality.
	if stats.HighQuality != 1 || stats.Errors != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	record := checkpoint.records["1"]
	if record.NewTitle != "the first five words matter" {
		t.Fatalf("fallback title = %q", record.NewTitle)
	}
	if !strings.Contains(record.Error, "generate title") {
		t.Fatalf("record error = %q", record.Error)
	}
	if record.Outcome() != domain.OutcomeHighQualityTagged {
		t.Fatalf("outcome = %q", record.Outcome())
	}
}

func TestRunEmptyContentFallsBackToUntitled(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	checkpoint := newFakeCheckpoint()
	titler := &fixedProvider{name: "a", kind: domain.KindHighQuality, title: "   "}

	pipeline := newTestPipeline(store, checkpoint, titler,
		Options{HighQualityTagID: 7, RenameDocuments: true},
		titler)

	if _, err := pipeline.Run(context.Background(), []domain.Document{doc("1", "   ")}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := checkpoint.records["1"].NewTitle; got != "Untitled Document" {
		t.Fatalf("title = %q, want Untitled Document", got)
	}
}

func TestRunTagFailureIsolatedPerDocument(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{tagErr: errors.New("store down"), failDocs: map[string]bool{"1": true}}
	checkpoint := newFakeCheckpoint()
	low := &fixedProvider{name: "a", kind: domain.KindLowQuality}

	pipeline := newTestPipeline(store, checkpoint, nil,
		Options{LowQualityTagID: 8}, low)

	stats, err := pipeline.Run(context.Background(), []domain.Document{
		doc("1", "content"),
		doc("2", "content"),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if stats.Errors != 1 || stats.LowQuality != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	failed := checkpoint.records["1"]
	if !strings.Contains(failed.Error, "tag low quality") {
		t.Fatalf("failed record error = %q", failed.Error)
	}
	if failed.Outcome() != domain.OutcomeError {
		t.Fatalf("failed outcome = %q", failed.Outcome())
	}
	if ok := checkpoint.records["2"]; ok.Outcome() != domain.OutcomeLowQualityTagged {
		t.Fatalf("second document outcome = %q", ok.Outcome())
	}
}

func TestRunPanicIsContained(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	checkpoint := newFakeCheckpoint()

	pipeline := newTestPipeline(store, checkpoint, nil, Options{LowQualityTagID: 8},
		&fixedProvider{name: "a", panics: true})

	stats, err := pipeline.Run(context.Background(), []domain.Document{
		doc("1", "content"),
	})
	if err != nil {
		t.Fatalf("panic escaped the pipeline: %v", err)
	}
	if stats.Errors != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if !strings.Contains(checkpoint.records["1"].Error, "panic") {
		t.Fatalf("record error = %q", checkpoint.records["1"].Error)
	}
}

func TestRunSkipsProcessedAndTaggedDocuments(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	checkpoint := newFakeCheckpoint()
	checkpoint.records["1"] = domain.DocumentRecord{DocumentID: "1"}
	high := &fixedProvider{name: "a", kind: domain.KindHighQuality}

	pipeline := newTestPipeline(store, checkpoint, nil,
		Options{HighQualityTagID: 7, SkipProcessed: true, IgnoreTagged: true},
		high)

	stats, err := pipeline.Run(context.Background(), []domain.Document{
		doc("1", "already processed"),
		doc("2", "already tagged", 3),
		doc("3", "fresh"),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if stats.Skipped != 2 || stats.Processed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	// Skipped documents must not regenerate records.
	if _, ok := checkpoint.records["2"]; ok {
		t.Fatal("tagged document got a record")
	}
	if _, ok := checkpoint.records["3"]; !ok {
		t.Fatal("fresh document missing record")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := newTestPipeline(&fakeDocStore{}, newFakeCheckpoint(), nil, Options{},
		&fixedProvider{name: "a", kind: domain.KindHighQuality})

	_, err := pipeline.Run(ctx, []domain.Document{doc("1", "content")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCapTitleLimitsLength(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 150)
	capped := capTitle(long)
	if got := len([]rune(capped)); got != maxTitleLength {
		t.Fatalf("capped title length = %d, want %d", got, maxTitleLength)
	}
	if !strings.HasSuffix(capped, "...") {
		t.Fatalf("capped title %q lacks ellipsis", capped)
	}

	if got := capTitle("short"); got != "short" {
		t.Fatalf("short title changed to %q", got)
	}
}
