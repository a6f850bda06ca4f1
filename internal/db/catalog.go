package db

import (
	"context"
	"fmt"

	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
	"github.com/jackc/pgx/v5"
)

const serviceColumns = `id, agency_id, title, description, price::float8, requirements`

// ListAgencies returns all agencies in insertion order
func (db *Database) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, `SELECT id, name, description, icon, color FROM agencies ORDER BY position`)
	if err != nil {
		return nil, classify(err, "list agencies")
	}
	defer rows.Close()

	agencies := make([]models.Agency, 0)
	for rows.Next() {
		var a models.Agency
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Icon, &a.Color); err != nil {
			return nil, classify(err, "scan agency")
		}
		agencies = append(agencies, a)
	}
	return agencies, classify(rows.Err(), "list agencies")
}

// GetAgency returns one agency by ID
func (db *Database) GetAgency(ctx context.Context, id string) (*models.Agency, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	var a models.Agency
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, description, icon, color FROM agencies WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.Description, &a.Icon, &a.Color)
	if err != nil {
		return nil, classify(err, "agency "+id)
	}
	return &a, nil
}

// CreateAgency inserts a new agency
func (db *Database) CreateAgency(ctx context.Context, a models.Agency) (*models.Agency, error) {
	if err := store.ValidateAgency(a); err != nil {
		return nil, err
	}
	if err := db.ready(); err != nil {
		return nil, err
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO agencies (id, name, description, icon, color) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Name, a.Description, a.Icon, a.Color,
	)
	if err != nil {
		return nil, classify(err, "create agency")
	}
	return &a, nil
}

// UpdateAgency updates agency fields
func (db *Database) UpdateAgency(ctx context.Context, a models.Agency) (*models.Agency, error) {
	if err := store.ValidateAgency(a); err != nil {
		return nil, err
	}
	if err := db.ready(); err != nil {
		return nil, err
	}
	tag, err := db.Pool.Exec(ctx,
		`UPDATE agencies SET name = $2, description = $3, icon = $4, color = $5 WHERE id = $1`,
		a.ID, a.Name, a.Description, a.Icon, a.Color,
	)
	if err != nil {
		return nil, classify(err, "update agency")
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("agency %s: %w", a.ID, store.ErrNotFound)
	}
	return &a, nil
}

// DeleteAgency deletes an agency and its services in one transaction
func (db *Database) DeleteAgency(ctx context.Context, id string) error {
	if err := db.ready(); err != nil {
		return err
	}
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return classify(err, "begin delete agency")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM services WHERE agency_id = $1`, id); err != nil {
		return classify(err, "delete agency services")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM agencies WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete agency")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agency %s: %w", id, store.ErrNotFound)
	}
	return classify(tx.Commit(ctx), "commit delete agency")
}

// ListServices returns services in insertion order, optionally for one agency
func (db *Database) ListServices(ctx context.Context, agencyID string) ([]models.Service, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	var rows pgx.Rows
	var err error
	if agencyID == "" {
		rows, err = db.Pool.Query(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY position`)
	} else {
		rows, err = db.Pool.Query(ctx, `SELECT `+serviceColumns+` FROM services WHERE agency_id = $1 ORDER BY position`, agencyID)
	}
	if err != nil {
		return nil, classify(err, "list services")
	}
	defer rows.Close()

	services := make([]models.Service, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, classify(err, "scan service")
		}
		services = append(services, *svc)
	}
	return services, classify(rows.Err(), "list services")
}

// GetService returns one service by ID
func (db *Database) GetService(ctx context.Context, id string) (*models.Service, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	svc, err := scanService(db.Pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "service "+id)
	}
	return svc, nil
}

// CreateService inserts a new service; a missing agency surfaces as not found
func (db *Database) CreateService(ctx context.Context, s models.Service) (*models.Service, error) {
	if err := store.ValidateService(s); err != nil {
		return nil, err
	}
	if err := db.ready(); err != nil {
		return nil, err
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO services (id, agency_id, title, description, price, requirements)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.AgencyID, s.Title, s.Description, s.Price, requirementsOrEmpty(s.Requirements),
	)
	if err != nil {
		return nil, classify(err, "create service (agency "+s.AgencyID+")")
	}
	return &s, nil
}

// UpdateService updates service fields
func (db *Database) UpdateService(ctx context.Context, s models.Service) (*models.Service, error) {
	if err := store.ValidateService(s); err != nil {
		return nil, err
	}
	if err := db.ready(); err != nil {
		return nil, err
	}
	tag, err := db.Pool.Exec(ctx,
		`UPDATE services SET agency_id = $2, title = $3, description = $4, price = $5, requirements = $6 WHERE id = $1`,
		s.ID, s.AgencyID, s.Title, s.Description, s.Price, requirementsOrEmpty(s.Requirements),
	)
	if err != nil {
		return nil, classify(err, "update service (agency "+s.AgencyID+")")
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("service %s: %w", s.ID, store.ErrNotFound)
	}
	return &s, nil
}

// DeleteService deletes a service by ID
func (db *Database) DeleteService(ctx context.Context, id string) error {
	if err := db.ready(); err != nil {
		return err
	}
	tag, err := db.Pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete service")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("service %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func scanService(row pgx.Row) (*models.Service, error) {
	var s models.Service
	if err := row.Scan(&s.ID, &s.AgencyID, &s.Title, &s.Description, &s.Price, &s.Requirements); err != nil {
		return nil, err
	}
	if s.Requirements == nil {
		s.Requirements = []string{}
	}
	return &s, nil
}

func requirementsOrEmpty(reqs []string) []string {
	if reqs == nil {
		return []string{}
	}
	return reqs
}
