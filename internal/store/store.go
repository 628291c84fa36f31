// Package store persists scrape runs and the places they produced.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Query  string          `json:"query,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for scrape runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, query string, total int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Places
	SavePlaces(ctx context.Context, runID string, places []model.Place) error
	ListPlaces(ctx context.Context, runID string) ([]model.Place, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// placeColumns is the column order shared by every places insert and select.
var placeColumns = []string{
	"run_id", "position", "name", "address", "website", "phone_number",
	"reviews_count", "reviews_average", "store_shopping", "in_store_pickup",
	"store_delivery", "place_type", "opens_at", "introduction", "url",
}

func placeRow(runID string, pos int, p model.Place) []any {
	return []any{
		runID, pos, p.Name, p.Address, p.Website, p.PhoneNumber,
		p.ReviewsCount, p.ReviewsAverage, string(p.StoreShopping), string(p.InStorePickup),
		string(p.StoreDelivery), p.PlaceType, p.OpensAt, p.Introduction, p.SourceURL,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPlace(row scannable) (model.Place, error) {
	var p model.Place
	var shopping, pickup, delivery string
	err := row.Scan(
		&p.Name, &p.Address, &p.Website, &p.PhoneNumber,
		&p.ReviewsCount, &p.ReviewsAverage, &shopping, &pickup,
		&delivery, &p.PlaceType, &p.OpensAt, &p.Introduction, &p.SourceURL,
	)
	if err != nil {
		return model.Place{}, err
	}
	p.StoreShopping = model.Flag(shopping)
	p.InStorePickup = model.Flag(pickup)
	p.StoreDelivery = model.Flag(delivery)
	return p, nil
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	err := row.Scan(&r.ID, &r.Query, &r.Total, &status, &r.Candidates, &r.PlacesCount, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}

// containsPattern builds a LIKE pattern matching s anywhere, with LIKE
// metacharacters in s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
