package patient

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("patient not found")

// Repository loads and saves the whole patient list. Order is preserved and
// MRNs are expected to be unique; the matcher relies on both.
type Repository interface {
	LoadPatients(ctx context.Context) ([]*Patient, error)
	SavePatients(ctx context.Context, patients []*Patient) error
	Ping(ctx context.Context) error
}
