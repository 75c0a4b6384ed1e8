package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-gateway/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads user profiles from the relational social database.
type UserRepository interface {
	FindByID(ctx context.Context, userID int) (models.User, error)
	FindByIDs(ctx context.Context, userIDs []int) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// FindByID fetches a single user row.
func (r *UserRepo) FindByID(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, email, username, COALESCE(avatar, '') AS avatar,
		        COALESCE(first_name, '') AS first_name, COALESCE(last_name, '') AS last_name
		 FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// FindByIDs fetches multiple users in one query.
func (r *UserRepo) FindByIDs(ctx context.Context, userIDs []int) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, email, username, COALESCE(avatar, '') AS avatar,
		        COALESCE(first_name, '') AS first_name, COALESCE(last_name, '') AS last_name
		 FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var users []models.User
	err = r.db.SelectContext(ctx, &users, query, args...)
	return users, err
}
