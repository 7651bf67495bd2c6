package domain

import (
	"context"
	"errors"
	"io"
)

// Stats counts what one ingestion pass did. Inserted counts new orders, Updated counts
// customers whose profile changed and Skipped counts orders that already existed.
type Stats struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
	Skipped   int `json:"skipped"`
}

type Service interface {
	// IngestFile loads a CSV export from disk into the operational store.
	IngestFile(ctx context.Context, path string) (Stats, error)
	// Ingest loads CSV rows from r. Row failures are counted, never returned.
	Ingest(ctx context.Context, r io.Reader) (Stats, error)
}

var (
	ErrEmptyFile         = errors.New("empty_file")
	ErrMissingColumn     = errors.New("missing_column")
	ErrInvalidOrderID    = errors.New("invalid_order_id")
	ErrInvalidCustomerID = errors.New("invalid_customer_id")
	ErrInvalidRestaurant = errors.New("invalid_restaurant")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidRating     = errors.New("invalid_rating")
)
