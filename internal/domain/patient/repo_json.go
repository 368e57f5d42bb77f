package patient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ehr/reportlink/internal/domain/report"
	"github.com/ehr/reportlink/internal/platform/jsonfile"
)

type jsonRepo struct {
	path string
}

// NewJSONRepo stores patients in a single JSON file, created on first use.
func NewJSONRepo(path string) Repository {
	return &jsonRepo{path: path}
}

func (r *jsonRepo) LoadPatients(ctx context.Context) ([]*Patient, error) {
	var patients []*Patient
	if err := jsonfile.Read(r.path, &patients); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for _, p := range patients {
		if p.Transmissions == nil {
			p.Transmissions = []report.Report{}
		}
	}
	return patients, nil
}

func (r *jsonRepo) SavePatients(ctx context.Context, patients []*Patient) error {
	if patients == nil {
		patients = []*Patient{}
	}
	if err := jsonfile.Write(r.path, patients); err != nil {
		return fmt.Errorf("save patients: %w", err)
	}
	return nil
}

// Ping checks that the data directory can be written.
func (r *jsonRepo) Ping(ctx context.Context) error {
	if err := jsonfile.Ensure(r.path); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(r.path), ".ping-*")
	if err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}
