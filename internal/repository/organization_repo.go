package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
)

// OrganizationRepository persists organizations, profiles, and their links
type OrganizationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB, logger *zap.Logger) *OrganizationRepository {
	return &OrganizationRepository{db: db, logger: logger}
}

// GetByID retrieves an organization by ID; returns nil when not found
func (r *OrganizationRepository) GetByID(ctx context.Context, id int64) (*entity.Organization, error) {
	query := `
		SELECT id, name, type, email, active, created_at, updated_at
		FROM organizations
		WHERE id = ?
	`

	var org entity.Organization
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.Type,
		&org.Email,
		&org.Active,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get organization", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// List retrieves active organizations
func (r *OrganizationRepository) List(ctx context.Context) ([]*entity.Organization, error) {
	query := `
		SELECT id, name, type, email, active, created_at, updated_at
		FROM organizations
		WHERE active = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list organizations", zap.Error(err))
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*entity.Organization
	for rows.Next() {
		var org entity.Organization
		err := rows.Scan(&org.ID, &org.Name, &org.Type, &org.Email, &org.Active, &org.CreatedAt, &org.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, &org)
	}

	return orgs, rows.Err()
}

// Create inserts a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *entity.Organization) error {
	query := `
		INSERT INTO organizations (name, type, email, active, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
	`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, org.Name, org.Type, org.Email, now, now)
	if err != nil {
		r.logger.Error("Failed to create organization", zap.Error(err))
		return fmt.Errorf("failed to create organization: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	org.ID = id
	org.Active = true
	org.CreatedAt = now
	org.UpdatedAt = now
	return nil
}

// GetProfileByID retrieves a profile by ID; returns nil when not found
func (r *OrganizationRepository) GetProfileByID(ctx context.Context, id int64) (*entity.Profile, error) {
	query := `
		SELECT id, email, full_name, role, active, created_at
		FROM profiles
		WHERE id = ?
	`

	var p entity.Profile
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&p.Role,
		&p.Active,
		&p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get profile", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

// CreateProfile inserts a new profile and links it to an organization
func (r *OrganizationRepository) CreateProfile(ctx context.Context, p *entity.Profile, orgID int64) error {
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (email, full_name, role, active, created_at)
		VALUES (?, ?, ?, 1, ?)
	`, p.Email, p.FullName, p.Role, now)
	if err != nil {
		r.logger.Error("Failed to create profile", zap.String("email", p.Email), zap.Error(err))
		return fmt.Errorf("failed to create profile: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.Active = true
	p.CreatedAt = now

	if orgID > 0 {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO user_organizations (profile_id, organization_id, created_at)
			VALUES (?, ?, ?)
		`, p.ID, orgID, now)
		if err != nil {
			r.logger.Error("Failed to link profile to organization",
				zap.Int64("profile_id", p.ID),
				zap.Int64("organization_id", orgID),
				zap.Error(err))
			return fmt.Errorf("failed to link profile to organization: %w", err)
		}
	}

	return nil
}
