package repository

import (
	"context"
	"database/sql"
	"fmt"

	"PetAlertAPI/internal/models"

	"github.com/lib/pq"
)

// IContactRepository resolves delivery addresses for a user.
type IContactRepository interface {
	GetContact(ctx context.Context, userID string) (*models.UserContact, error)
}

// IPetRepository resolves pet details owned by the wider platform.
type IPetRepository interface {
	GetPet(ctx context.Context, petID string) (*models.Pet, error)
}

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// GetContact returns nil, nil for unknown users.
func (r *ContactRepository) GetContact(ctx context.Context, userID string) (*models.UserContact, error) {
	query := `
		SELECT u.id, COALESCE(u.email, ''),
		       COALESCE(ARRAY_AGG(d.token) FILTER (WHERE d.token IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN device_tokens d ON d.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id, u.email
	`

	var (
		contact models.UserContact
		tokens  pq.StringArray
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&contact.UserID, &contact.Email, &tokens)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact for user %s: %w", userID, err)
	}

	contact.DeviceTokens = []string(tokens)
	return &contact, nil
}

type PetRepository struct {
	db *sql.DB
}

func NewPetRepository(db *sql.DB) *PetRepository {
	return &PetRepository{db: db}
}

// GetPet returns nil, nil for unknown pets.
func (r *PetRepository) GetPet(ctx context.Context, petID string) (*models.Pet, error) {
	query := `SELECT id, owner_id, name FROM pets WHERE id = $1`

	var pet models.Pet
	err := r.db.QueryRowContext(ctx, query, petID).Scan(&pet.ID, &pet.OwnerID, &pet.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pet %s: %w", petID, err)
	}

	return &pet, nil
}
