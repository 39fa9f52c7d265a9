package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// DirectoryRepository resolves notification recipients from assignments,
// profiles and organizations
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) *DirectoryRepository {
	return &DirectoryRepository{db: db, logger: logger}
}

// AssigneeEmails returns the distinct emails of everyone assigned to a work
// order. Person assignments resolve through profiles; organization
// assignments fall back to the organization's contact email.
func (r *DirectoryRepository) AssigneeEmails(ctx context.Context, workOrderID int64) ([]string, error) {
	query := `
		SELECT DISTINCT COALESCE(p.email, o.email, '')
		FROM work_order_assignments a
		LEFT JOIN profiles p ON p.id = a.assignee_id AND a.assignee_id > 0
		LEFT JOIN organizations o ON o.id = a.assignee_org_id AND a.assignee_org_id > 0
		WHERE a.work_order_id = ?
	`

	rows, err := r.db.QueryContext(ctx, query, workOrderID)
	if err != nil {
		r.logger.Error("Failed to resolve assignee emails",
			zap.Int64("work_order_id", workOrderID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to resolve assignee emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan assignee email: %w", err)
		}
		if email != "" {
			emails = append(emails, email)
		}
	}

	return emails, rows.Err()
}

// OrganizationEmail returns an organization's contact email, empty when the
// organization is missing or has none
func (r *DirectoryRepository) OrganizationEmail(ctx context.Context, orgID int64) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx,
		`SELECT email FROM organizations WHERE id = ?`, orgID).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve organization email",
			zap.Int64("organization_id", orgID),
			zap.Error(err))
		return "", fmt.Errorf("failed to resolve organization email: %w", err)
	}

	return email, nil
}
