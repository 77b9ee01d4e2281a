package repository

import (
	"context"
	"database/sql"
	"fmt"

	"inboxpilot/internal/models"

	"github.com/google/uuid"
)

type contactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *sql.DB) ContactRepository {
	return &contactRepository{db: db}
}

// Create creates a new contact
func (r *contactRepository) Create(ctx context.Context, contact *models.Contact) error {
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	if contact.Status == "" {
		contact.Status = models.ContactStatusActive
	}

	query := `
		INSERT INTO contacts (id, workspace_id, email, first_name, last_name, company, title, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		contact.ID,
		contact.WorkspaceID,
		contact.Email,
		contact.FirstName,
		contact.LastName,
		contact.Company,
		contact.Title,
		contact.Status,
	).Scan(&contact.CreatedAt)

	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	return nil
}

// GetByID retrieves a contact by ID within a workspace
func (r *contactRepository) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*models.Contact, error) {
	query := `
		SELECT id, workspace_id, email, first_name, last_name, company, title, status, created_at
		FROM contacts
		WHERE id = $1 AND workspace_id = $2
	`

	contact := &models.Contact{}
	err := r.db.QueryRowContext(ctx, query, id, workspaceID).Scan(
		&contact.ID,
		&contact.WorkspaceID,
		&contact.Email,
		&contact.FirstName,
		&contact.LastName,
		&contact.Company,
		&contact.Title,
		&contact.Status,
		&contact.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return contact, nil
}

// GetByEmail retrieves a contact by address within a workspace
func (r *contactRepository) GetByEmail(ctx context.Context, workspaceID uuid.UUID, email string) (*models.Contact, error) {
	query := `
		SELECT id, workspace_id, email, first_name, last_name, company, title, status, created_at
		FROM contacts
		WHERE workspace_id = $1 AND email = $2
	`

	contact := &models.Contact{}
	err := r.db.QueryRowContext(ctx, query, workspaceID, email).Scan(
		&contact.ID,
		&contact.WorkspaceID,
		&contact.Email,
		&contact.FirstName,
		&contact.LastName,
		&contact.Company,
		&contact.Title,
		&contact.Status,
		&contact.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact by email: %w", err)
	}

	return contact, nil
}
