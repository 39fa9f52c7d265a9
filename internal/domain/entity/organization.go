package entity

import "time"

// Organization types within the tenant model
const (
	OrgTypeInternal      = "internal"
	OrgTypePartner       = "partner"
	OrgTypeSubcontractor = "subcontractor"
)

// Organization is a tenant: the internal company, a partner, or a
// subcontractor. All row-level scoping keys off the organization ID.
type Organization struct {
	ID        int64
	Name      string
	Type      string
	Email     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is a user profile; authentication itself is delegated upstream
type Profile struct {
	ID        int64
	Email     string
	FullName  string
	Role      string // admin, partner, subcontractor, employee
	Active    bool
	CreatedAt time.Time
}

// UserOrganization links a profile to an organization
type UserOrganization struct {
	ProfileID      int64
	OrganizationID int64
	CreatedAt      time.Time
}

// SystemSetting is a keyed configuration row editable at runtime
type SystemSetting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
