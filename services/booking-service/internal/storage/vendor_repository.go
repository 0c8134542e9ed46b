package storage

import (
	"context"

	"github.com/vivekvardhan7/homesaloon/libs/db"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
)

type VendorRepository struct {
	pool *db.Pool
}

func NewVendorRepository(pool *db.Pool) *VendorRepository {
	return &VendorRepository{pool: pool}
}

func (r *VendorRepository) Get(ctx context.Context, id string) (model.Vendor, error) {
	var v model.Vendor
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, type, active
		FROM vendors
		WHERE id = $1
	`, id).Scan(&v.ID, &v.Name, &v.Type, &v.Active)
	if err != nil {
		return model.Vendor{}, err
	}
	return v, nil
}

// List returns active vendors, optionally narrowed to a vendor type
// (for example "salon" or "freelancer").
func (r *VendorRepository) List(ctx context.Context, vendorType string, limit, offset int) ([]model.Vendor, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, active
		FROM vendors
		WHERE active = TRUE
			AND ($1 = '' OR type = $1)
		ORDER BY name ASC
		LIMIT $2 OFFSET $3
	`, vendorType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []model.Vendor
	for rows.Next() {
		var v model.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Type, &v.Active); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return vendors, nil
}
