package capture_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/giji/pkg/adapter"
	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/gt"
)

func newStore(opts ...capture.Option) *capture.Store {
	return capture.New(capture.NewInput{
		Transcriber: adapter.NewOfflineTranscriber(),
		Diarizer:    adapter.NewHashDiarizer(),
		Summarizer:  adapter.NewHeuristicSummarizer(),
	}, opts...)
}

func TestCreateAndGet(t *testing.T) {
	createdAt := time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)
	store := newStore(capture.WithClock(func() time.Time { return createdAt }))

	session, err := store.Create("standup", "en", "Daily standup", []string{"updates", "blockers"})
	gt.NoError(t, err)
	gt.Equal(t, session.ID, model.SessionID("standup"))
	gt.Equal(t, session.Language, "en")
	gt.Equal(t, session.CreatedAt, createdAt)
	gt.Equal(t, session.Title, "Daily standup")
	gt.Equal(t, session.Agenda, []string{"updates", "blockers"})

	// Mutating the returned copy must not leak into the store.
	session.Title = "hijacked"
	session.Agenda[0] = "hijacked"

	got, err := store.Get("standup")
	gt.NoError(t, err)
	gt.Equal(t, got.Title, "Daily standup")
	gt.Equal(t, got.Agenda[0], "updates")
}

func TestCreateDefaultsLanguage(t *testing.T) {
	store := newStore()

	session, err := store.Create("s1", "", "", nil)
	gt.NoError(t, err)
	gt.Equal(t, session.Language, model.DefaultLanguage)
	gt.Equal(t, session.Title, "")
	gt.A(t, session.Agenda).Length(0)
}

func TestCreateDuplicateConflicts(t *testing.T) {
	store := newStore()

	_, err := store.Create("dup", "en", "", nil)
	gt.NoError(t, err)

	_, err = store.Create("dup", "ja", "", nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrSessionExists))
	gt.True(t, model.IsConflict(err))
}

func TestCreateBlankID(t *testing.T) {
	store := newStore()

	_, err := store.Create("  ", "en", "", nil)
	gt.Error(t, err)
	gt.True(t, model.IsInvalidArgument(err))
}

func TestGetUnknownSession(t *testing.T) {
	store := newStore()

	_, err := store.Get("missing")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrSessionNotFound))
	gt.True(t, model.IsNotFound(err))
}

func TestDeleteAndSessionIDs(t *testing.T) {
	store := newStore()

	_, err := store.Create("beta", "en", "", nil)
	gt.NoError(t, err)
	_, err = store.Create("alpha", "en", "", nil)
	gt.NoError(t, err)

	gt.Equal(t, store.SessionIDs(), []model.SessionID{"alpha", "beta"})
	gt.True(t, store.Exists("alpha"))

	gt.True(t, store.Delete("alpha"))
	gt.False(t, store.Delete("alpha"))
	gt.False(t, store.Exists("alpha"))
	gt.Equal(t, store.SessionIDs(), []model.SessionID{"beta"})

	store.Clear()
	gt.A(t, store.SessionIDs()).Length(0)
}

func TestAppendTracksNewSpeakers(t *testing.T) {
	store := newStore()
	_, err := store.Create("s1", "en", "", nil)
	gt.NoError(t, err)

	// Speakers stay "new" until labeled, once per occurrence.
	result, err := store.Append("s1", []model.Segment{
		{Speaker: "spk-a", Text: "hello"},
		{Speaker: "spk-b", Text: "hi"},
		{Speaker: "spk-a", Text: "again"},
	})
	gt.NoError(t, err)
	gt.Equal(t, result.NewSpeakers, []model.SpeakerID{"spk-a", "spk-b", "spk-a"})
	gt.A(t, result.Session.Segments).Length(3)

	_, err = store.Label("s1", "spk-a", "Ali")
	gt.NoError(t, err)

	result, err = store.Append("s1", []model.Segment{{Speaker: "spk-a", Text: "more"}})
	gt.NoError(t, err)
	gt.A(t, result.Appended).Length(1)
	gt.A(t, result.NewSpeakers).Length(0)
}

func TestAppendTranscript(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	_, err := store.Create("s1", "en", "", nil)
	gt.NoError(t, err)

	result, err := store.AppendTranscript(ctx, "s1", "  we should revisit the roadmap  ")
	gt.NoError(t, err)
	gt.A(t, result.Appended).Length(1)
	gt.Equal(t, result.Appended[0].Text, "we should revisit the roadmap")
	gt.True(t, strings.HasPrefix(string(result.Appended[0].Speaker), "speaker-"))
	gt.A(t, result.NewSpeakers).Length(1)

	// Blank input transcribes to nothing and leaves the timeline alone.
	result, err = store.AppendTranscript(ctx, "s1", "   ")
	gt.NoError(t, err)
	gt.A(t, result.Appended).Length(0)
	gt.A(t, result.Session.Segments).Length(1)

	_, err = store.AppendTranscript(ctx, "missing", "hello")
	gt.Error(t, err)
	gt.True(t, model.IsNotFound(err))
}

func TestLabelAndForget(t *testing.T) {
	store := newStore()
	_, err := store.Create("s1", "en", "", nil)
	gt.NoError(t, err)

	_, err = store.Append("s1", []model.Segment{
		{Speaker: "spk-a", Text: "my card number is 42"},
		{Speaker: "spk-b", Text: "noted"},
	})
	gt.NoError(t, err)

	session, err := store.Label("s1", "spk-a", "Alice")
	gt.NoError(t, err)
	gt.Equal(t, session.SpeakerLabels["spk-a"], "Alice")

	result, err := store.Forget("s1", "spk-a", "")
	gt.NoError(t, err)
	gt.Equal(t, result.Scrubbed, 1)
	gt.Equal(t, result.Session.Segments[0].Text, model.DefaultRedactionText)
	gt.Equal(t, result.Session.Segments[1].Text, "noted")
	_, labeled := result.Session.SpeakerLabels["spk-a"]
	gt.False(t, labeled)

	_, err = store.Label("s1", "", "Nobody")
	gt.Error(t, err)
	gt.True(t, model.IsInvalidArgument(err))
}

func TestSearch(t *testing.T) {
	store := newStore()
	_, err := store.Create("s1", "en", "", nil)
	gt.NoError(t, err)

	_, err = store.Append("s1", []model.Segment{
		{Speaker: "spk-a", Text: "the Budget looks fine"},
		{Speaker: "spk-b", Text: "ship it"},
	})
	gt.NoError(t, err)

	hits, err := store.Search("s1", "budget")
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.Equal(t, hits[0].Speaker, model.SpeakerID("spk-a"))

	hits, err = store.Search("s1", "nothing here")
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)

	_, err = store.Search("missing", "x")
	gt.Error(t, err)
	gt.True(t, model.IsNotFound(err))
}

func TestUpdateMetadata(t *testing.T) {
	store := newStore()
	_, err := store.Create("s1", "en", "Kickoff", []string{"intro"})
	gt.NoError(t, err)

	title := "  Renamed  "
	session, err := store.UpdateMetadata("s1", &title, nil)
	gt.NoError(t, err)
	gt.Equal(t, session.Title, "Renamed")
	gt.Equal(t, session.Agenda, []string{"intro"})

	agenda := []string{" one ", "", "two"}
	session, err = store.UpdateMetadata("s1", nil, &agenda)
	gt.NoError(t, err)
	gt.Equal(t, session.Title, "Renamed")
	gt.Equal(t, session.Agenda, []string{"one", "two"})

	_, err = store.UpdateMetadata("missing", &title, nil)
	gt.Error(t, err)
	gt.True(t, model.IsNotFound(err))
}

func TestConcurrentAppend(t *testing.T) {
	store := newStore()
	_, err := store.Create("s1", "en", "", nil)
	gt.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := store.Append("s1", []model.Segment{{Speaker: "spk", Text: "x"}}); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	session, err := store.Get("s1")
	gt.NoError(t, err)
	gt.A(t, session.Segments).Length(100)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	_, err := store.Create("s1", "en", "", nil)
	gt.NoError(t, err)

	_, err = store.Append("s1", []model.Segment{
		{Speaker: "spk-a", Text: "we agreed on the rollout plan."},
		{Speaker: "spk-b", Text: "ship it."},
	})
	gt.NoError(t, err)

	summary, err := store.Summary(ctx, "s1", 1)
	gt.NoError(t, err)
	gt.Equal(t, summary.Highlight, "we agreed on the rollout plan")
	gt.A(t, summary.BulletPoints).Length(1)

	_, err = store.Summary(ctx, "missing", 0)
	gt.Error(t, err)
	gt.True(t, model.IsNotFound(err))
}

func TestExportAndRestore(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)
	store := newStore(capture.WithClock(func() time.Time { return createdAt }))

	_, err := store.Create("s1", "en", "Kickoff", []string{"intro"})
	gt.NoError(t, err)
	_, err = store.Append("s1", []model.Segment{
		{Speaker: "spk-a", Text: "hello everyone."},
		{Speaker: "spk-b", Text: "hi."},
	})
	gt.NoError(t, err)
	_, err = store.Label("s1", "spk-a", "Alice")
	gt.NoError(t, err)

	export, err := store.Export(ctx, "s1")
	gt.NoError(t, err)
	gt.Equal(t, export.SessionID, model.SessionID("s1"))
	gt.Equal(t, export.CreatedAt, createdAt)
	gt.Equal(t, export.Title, "Kickoff")
	gt.A(t, export.Segments).Length(2)
	gt.V(t, export.Segments[0].SpeakerLabel).NotNil()
	gt.Equal(t, *export.Segments[0].SpeakerLabel, "Alice")
	gt.Equal(t, export.Summary.Highlight, "hello everyone")

	// Restoring replaces the live session and starts with an empty buffer.
	other := newStore()
	restored := other.Restore(export)
	gt.Equal(t, restored.ID, model.SessionID("s1"))
	gt.A(t, restored.Segments).Length(2)
	gt.Equal(t, restored.SpeakerLabels["spk-a"], "Alice")
	gt.A(t, restored.AudioBuffer).Length(0)

	got, err := other.Get("s1")
	gt.NoError(t, err)
	gt.Equal(t, got.Title, "Kickoff")
}

type failingSummarizer struct{}

func (x *failingSummarizer) Summarize(ctx context.Context, transcript string, maxPoints int) (*model.Summary, error) {
	return nil, errors.New("summarizer down")
}

func TestSummaryError(t *testing.T) {
	store := capture.New(capture.NewInput{
		Transcriber: adapter.NewOfflineTranscriber(),
		Diarizer:    adapter.NewHashDiarizer(),
		Summarizer:  &failingSummarizer{},
	})
	_, err := store.Create("s1", "en", "", nil)
	gt.NoError(t, err)

	_, err = store.Summary(context.Background(), "s1", 0)
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("summarizer down")

	_, err = store.Export(context.Background(), "s1")
	gt.Error(t, err)
}

func TestRestoreNormalizesRecords(t *testing.T) {
	store := newStore()
	export := &model.Export{
		SessionID: "weekly",
		CreatedAt: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		Language:  "en",
		Segments: []model.SegmentRecord{
			{Speaker: "spk-a", Text: "unlabeled"},
		},
	}

	restored := store.Restore(export)
	gt.Equal(t, restored.Language, "en")
	gt.A(t, restored.Segments).Length(1)
	gt.Equal(t, restored.Segments[0].Text, "unlabeled")
	_, labeled := restored.SpeakerLabels["spk-a"]
	gt.False(t, labeled)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	store := newStore()
	_, err := store.Create("s1", "en", "", nil)
	gt.NoError(t, err)
	_, err = store.Append("s1", []model.Segment{{Speaker: "spk", Text: "Action Items for tomorrow"}})
	gt.NoError(t, err)

	hits, err := store.Search("s1", "ACTION items")
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.True(t, strings.Contains(hits[0].Text, "Action Items"))
}
