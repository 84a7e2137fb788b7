package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Insight is the sink for per-export analytics rows
type Insight interface {
	// InsertExport appends one row describing a stored export
	InsertExport(ctx context.Context, export *model.Export) error
}

type insightClient struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// InsightOption is a functional option for the BigQuery insight sink
type InsightOption func(*insightClient)

// WithInsightDataset overrides the destination dataset
func WithInsightDataset(dataset string) InsightOption {
	return func(x *insightClient) {
		x.dataset = dataset
	}
}

// WithInsightTable overrides the destination table
func WithInsightTable(table string) InsightOption {
	return func(x *insightClient) {
		x.table = table
	}
}

// NewInsight creates a BigQuery-backed insight sink
func NewInsight(ctx context.Context, projectID string, opts ...InsightOption) (Insight, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	x := &insightClient{
		client:  client,
		dataset: "giji",
		table:   "exports",
	}

	for _, opt := range opts {
		opt(x)
	}

	return x, nil
}

// exportRow is the row layout of the exports insight table
type exportRow struct {
	SessionID    string    `bigquery:"session_id"`
	CreatedAt    time.Time `bigquery:"created_at"`
	StoredAt     time.Time `bigquery:"stored_at"`
	Language     string    `bigquery:"language"`
	Title        string    `bigquery:"title"`
	SegmentCount int       `bigquery:"segment_count"`
	SpeakerCount int       `bigquery:"speaker_count"`
	Highlight    string    `bigquery:"highlight"`
}

func (x *insightClient) InsertExport(ctx context.Context, export *model.Export) error {
	speakers := map[model.SpeakerID]struct{}{}
	for _, rec := range export.Segments {
		speakers[rec.Speaker] = struct{}{}
	}

	row := &exportRow{
		SessionID:    string(export.SessionID),
		CreatedAt:    export.CreatedAt,
		StoredAt:     time.Now().UTC(),
		Language:     export.Language,
		Title:        export.Title,
		SegmentCount: len(export.Segments),
		SpeakerCount: len(speakers),
		Highlight:    export.Summary.Highlight,
	}

	inserter := x.client.Dataset(x.dataset).Table(x.table).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return goerr.Wrap(err, "failed to insert export row", goerr.V("sessionID", export.SessionID))
	}

	return nil
}
