package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo/quizrush_backend/internal/types"
)

// CreateUser inserts a new user profile. A zero rating defaults to 1200.
func (d *Database) CreateUser(user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Rating == 0 {
		user.Rating = defaultBotRating
	}

	_, err := d.db.Exec("INSERT INTO users (id, username, rating) VALUES (?, ?, ?)",
		user.ID, user.Username, user.Rating)
	if err != nil {
		return fmt.Errorf("failed to create user: %v", err)
	}
	return nil
}

// GetUserByID retrieves a user profile by ID
func (d *Database) GetUserByID(id string) (*User, error) {
	var user User
	err := d.db.QueryRow("SELECT id, username, rating, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Username, &user.Rating, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", types.ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return &user, nil
}

// GetUserRating returns the current rating of a user
func (d *Database) GetUserRating(id string) (int, error) {
	var rating int
	err := d.db.QueryRow("SELECT rating FROM users WHERE id = ?", id).Scan(&rating)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: user %s", types.ErrNotFound, id)
	} else if err != nil {
		return 0, fmt.Errorf("failed to get rating: %v", err)
	}
	return rating, nil
}

// UpdateRatings writes both sides of a 1v1 rating adjustment in a single
// transaction so a partial update can never skew the rating pool.
func (d *Database) UpdateRatings(userA string, newA int, userB string, newB int) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	for _, pair := range []struct {
		id     string
		rating int
	}{{userA, newA}, {userB, newB}} {
		res, err := tx.Exec("UPDATE users SET rating = ? WHERE id = ?", pair.rating, pair.id)
		if err != nil {
			return fmt.Errorf("failed to update rating for %s: %v", pair.id, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: user %s", types.ErrNotFound, pair.id)
		}
	}

	return tx.Commit()
}
