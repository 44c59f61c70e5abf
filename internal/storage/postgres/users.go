package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MJ-02/BillSplitter/internal/models"
)

const userColumns = `id, name, phone, whatsapp_number, payment_handle, created_at`

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateUser inserts a new user into the database.
func (q *queries) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	_, err := q.db.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, user.Phone, user.WhatsAppNumber, user.PaymentHandle, user.CreatedAt,
	)
	if err != nil {
		return classify(err, "create user", "user "+user.ID)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (q *queries) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := scanUser(q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID,
	))
	if err != nil {
		return nil, notFound(err, "get user", "user", userID)
	}
	return user, nil
}

// ListUsers returns every user, oldest first.
func (q *queries) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// UpdateUser overwrites the editable fields of an existing user.
func (q *queries) UpdateUser(ctx context.Context, user *models.User) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE users SET name = $1, phone = $2, whatsapp_number = $3, payment_handle = $4 WHERE id = $5`,
		user.Name, user.Phone, user.WhatsAppNumber, user.PaymentHandle, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectAffected(tag, "user", user.ID)
}

// DeleteUser removes a user. Their splits go with them.
func (q *queries) DeleteUser(ctx context.Context, userID string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectAffected(tag, "user", userID)
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(
		&user.ID, &user.Name, &user.Phone, &user.WhatsAppNumber, &user.PaymentHandle, &user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return user, nil
}
