package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mampersat/ratewings2025/internal/api"
	"github.com/mampersat/ratewings2025/internal/geo"
	"github.com/mampersat/ratewings2025/internal/jobs"
	"github.com/mampersat/ratewings2025/internal/stats"
	"github.com/mampersat/ratewings2025/internal/tracing"
)

// Importer turns entries into locations and reviews through the API.
// It is not safe for concurrent use.
type Importer struct {
	client  *Client
	stats   *stats.ImportStats
	metrics *jobs.Metrics
	logger  *slog.Logger

	// locations maps a lower-cased trimmed name to a location id.
	locations map[string]int64
}

// Option configures an Importer.
type Option func(*Importer)

// WithMetrics records job metrics.
func WithMetrics(m *jobs.Metrics) Option {
	return func(im *Importer) { im.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// New creates an Importer.
func New(client *Client, opts ...Option) *Importer {
	im := &Importer{
		client: client,
		stats:  stats.NewImportStats(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Stats returns the counters of the current and previous runs.
func (im *Importer) Stats() *stats.ImportStats {
	return im.stats
}

// Run imports every entry. Existing locations are listed once on the first
// call. A failing entry is logged and counted; Run only returns an error
// when the location listing fails or ctx is cancelled.
func (im *Importer) Run(ctx context.Context, entries []Entry) (err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "import.run", attribute.Int("entries", len(entries)))
	finish := im.metrics.Start(jobs.JobTypeDataImport)
	before := im.stats.ReviewsCreated()
	failedBefore := im.stats.Failed()
	defer func() {
		im.metrics.AddItems(jobs.JobTypeDataImport, jobs.ItemUpdated, int(im.stats.ReviewsCreated()-before))
		im.metrics.AddItems(jobs.JobTypeDataImport, jobs.ItemFailed, int(im.stats.Failed()-failedBefore))
		finish(err)
		endSpan(err)
	}()

	if im.locations == nil {
		if err := im.loadLocations(ctx); err != nil {
			im.metrics.IncJobErrors(jobs.JobTypeDataImport, "http_error")
			return err
		}
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		im.stats.RecordEntry()
		if err := im.importEntry(ctx, entry); err != nil {
			im.stats.RecordFailure()
			im.metrics.IncJobErrors(jobs.JobTypeDataImport, errorType(err))
			name, _ := entry.Name()
			im.logger.WarnContext(ctx, "failed to import entry",
				slog.Int("index", i),
				slog.String("name", name),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (im *Importer) loadLocations(ctx context.Context) error {
	existing, err := im.client.ListLocations(ctx)
	if err != nil {
		return err
	}
	im.locations = make(map[string]int64, len(existing))
	for _, loc := range existing {
		key := nameKey(loc.Name)
		if _, ok := im.locations[key]; !ok {
			im.locations[key] = loc.ID
		}
	}
	im.logger.InfoContext(ctx, "loaded existing locations", slog.Int("count", len(existing)))
	return nil
}

func (im *Importer) importEntry(ctx context.Context, e Entry) (err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "import.entry")
	defer func() { endSpan(err) }()

	name, err := e.Name()
	if err != nil {
		return err
	}
	rating, err := e.Rating()
	if err != nil {
		return err
	}
	lat, lon, err := e.Coordinates()
	if err != nil {
		return err
	}

	locationID, err := im.locationID(ctx, name, e.Address(), lat, lon)
	if err != nil {
		return err
	}

	comment := e.Comment()
	req := api.CreateReviewRequest{LocationID: &locationID, Rating: &rating}
	if comment != "" {
		req.Comment = &comment
	}
	review, err := im.client.CreateReview(ctx, req)
	if err != nil {
		return err
	}

	im.stats.RecordReviewCreated()
	im.logger.InfoContext(ctx, "imported review",
		slog.String("name", name),
		slog.Int64("location_id", locationID),
		slog.Int64("review_id", review.ID))
	return nil
}

func (im *Importer) locationID(ctx context.Context, name string, address *string, lat, lon *float64) (int64, error) {
	key := nameKey(name)
	if id, ok := im.locations[key]; ok {
		im.stats.RecordLocationReused()
		return id, nil
	}

	// Coordinates the API rejects are dropped so the location is still created.
	if err := geo.ValidatePair(lat, lon); err != nil {
		im.logger.WarnContext(ctx, "dropping invalid coordinates",
			slog.String("name", name),
			slog.String("error", err.Error()))
		lat, lon = nil, nil
	}

	loc, err := im.client.CreateLocation(ctx, api.CreateLocationRequest{
		Name:    name,
		Address: address,
		Lat:     lat,
		Lon:     lon,
	})
	if err != nil {
		return 0, err
	}
	im.locations[key] = loc.ID
	im.stats.RecordLocationCreated()
	return loc.ID, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func errorType(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return fmt.Sprintf("http_%d", apiErr.Status)
	case errors.Is(err, ErrMissingName), errors.Is(err, ErrMissingRating), errors.Is(err, ErrBadCoordinate):
		return "invalid_entry"
	default:
		return "http_error"
	}
}
