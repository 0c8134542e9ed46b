package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/vivekvardhan7/homesaloon/libs/db"
)

type User struct {
	ID           string
	VendorID     string
	Email        string
	Phone        string
	PasswordHash string
	Role         string
}

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, vendor_id, email, phone, password_hash, role)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6)
	`, user.ID, user.VendorID, user.Email, user.Phone, user.PasswordHash, user.Role)
	return err
}

func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, user User) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, vendor_id, email, phone, password_hash, role)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6)
	`, user.ID, user.VendorID, user.Email, user.Phone, user.PasswordHash, user.Role)
	return err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, COALESCE(vendor_id, ''), email, COALESCE(phone, ''), password_hash, role
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.VendorID, &user.Email, &user.Phone, &user.PasswordHash, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, COALESCE(vendor_id, ''), email, COALESCE(phone, ''), password_hash, role
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.VendorID, &user.Email, &user.Phone, &user.PasswordHash, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}
