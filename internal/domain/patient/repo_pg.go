package patient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/reportlink/internal/domain/report"
	"github.com/ehr/reportlink/internal/platform/db"
)

type patientRepoPG struct {
	pool *pgxpool.Pool
}

// NewPGRepo stores patients in the patient table. Insertion order is kept
// in the seq column so LoadPatients returns repository order.
func NewPGRepo(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `patient_id, mrn, name, dob, assigned_doctor, transmissions`

func (r *patientRepoPG) LoadPatients(ctx context.Context) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	return patients, nil
}

// SavePatients upserts every patient in one transaction. Patients are never
// deleted, so rows missing from the slice are left alone.
func (r *patientRepoPG) SavePatients(ctx context.Context, patients []*Patient) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range patients {
			encoded, err := json.Marshal(transmissionsOrEmpty(p.Transmissions))
			if err != nil {
				return fmt.Errorf("encode transmissions for %s: %w", p.PatientID, err)
			}
			batch.Queue(`
				INSERT INTO patient (`+patientCols+`)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (patient_id) DO UPDATE SET
					mrn = EXCLUDED.mrn,
					name = EXCLUDED.name,
					dob = EXCLUDED.dob,
					assigned_doctor = EXCLUDED.assigned_doctor,
					transmissions = EXCLUDED.transmissions,
					updated_at = NOW()`,
				p.PatientID, p.MRN, p.Name, p.DOB, p.AssignedDoctor, encoded,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("save patients: %w", err)
		}
		return nil
	})
}

func (r *patientRepoPG) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var raw []byte
	if err := row.Scan(&p.PatientID, &p.MRN, &p.Name, &p.DOB, &p.AssignedDoctor, &raw); err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	if err := json.Unmarshal(raw, &p.Transmissions); err != nil {
		return nil, fmt.Errorf("decode transmissions for %s: %w", p.PatientID, err)
	}
	p.Transmissions = transmissionsOrEmpty(p.Transmissions)
	return &p, nil
}

func transmissionsOrEmpty(t []report.Report) []report.Report {
	if t == nil {
		return []report.Report{}
	}
	return t
}
