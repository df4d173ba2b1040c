package models

import "time"

// Customer ownership statuses
const (
	CustomerStatusPrivate    = "PRIVATE"
	CustomerStatusPublicPool = "PUBLIC_POOL"
)

// Customer represents a CRM customer record. OwnerID is set iff the
// customer is PRIVATE.
type Customer struct {
	ID            int64      `db:"id" json:"id"`
	CompanyName   string     `db:"company_name" json:"company_name"`
	Industry      string     `db:"industry" json:"industry,omitempty"`
	Region        string     `db:"region" json:"region,omitempty"`
	Status        string     `db:"status" json:"status"`
	OwnerID       *int64     `db:"owner_id" json:"owner_id,omitempty"`
	LastContactAt *time.Time `db:"last_contact_at" json:"last_contact_at,omitempty"`
	LeadSource    string     `db:"lead_source" json:"lead_source,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Opportunity stages
const (
	StageProspecting   = "PROSPECTING"
	StageQualification = "QUALIFICATION"
	StageProposal      = "PROPOSAL"
	StageNegotiation   = "NEGOTIATION"
	StageClosedWon     = "CLOSED_WON"
	StageClosedLost    = "CLOSED_LOST"
)

// Opportunity represents a sales opportunity against a customer.
// Probability is always the table value for the current stage.
type Opportunity struct {
	ID            int64      `db:"id" json:"id"`
	CustomerID    int64      `db:"customer_id" json:"customer_id"`
	Name          string     `db:"name" json:"name"`
	Amount        float64    `db:"amount" json:"amount"`
	Stage         string     `db:"stage" json:"stage"`
	Probability   int        `db:"probability" json:"probability"`
	ExpectedClose *time.Time `db:"expected_close" json:"expected_close,omitempty"`
	LossReason    *string    `db:"loss_reason" json:"loss_reason,omitempty"`
	OwnerID       int64      `db:"owner_id" json:"owner_id"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Quote statuses
const (
	QuoteStatusDraft           = "DRAFT"
	QuoteStatusPendingManager  = "PENDING_MANAGER"
	QuoteStatusPendingDirector = "PENDING_DIRECTOR"
	QuoteStatusApproved        = "APPROVED"
	QuoteStatusRejected        = "REJECTED"
	QuoteStatusSent            = "SENT"
)

// Quote represents a price quotation against a customer and optional
// opportunity.
type Quote struct {
	ID               int64     `db:"id" json:"id"`
	QuoteNumber      string    `db:"quote_number" json:"quote_number"`
	CustomerID       int64     `db:"customer_id" json:"customer_id"`
	OpportunityID    *int64    `db:"opportunity_id" json:"opportunity_id,omitempty"`
	TotalAmount      float64   `db:"total_amount" json:"total_amount"`
	Status           string    `db:"status" json:"status"`
	RequiresApproval bool      `db:"requires_approval" json:"requires_approval"`
	CreatedBy        int64     `db:"created_by" json:"created_by"`
	ApproverID       *int64    `db:"approver_id" json:"approver_id,omitempty"`
	RejectionReason  *string   `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// QuoteItem represents a single quote line. ManualPrice is set when the
// entered unit price deviates from the tier price beyond the epsilon.
type QuoteItem struct {
	ID          int64   `db:"id" json:"id"`
	QuoteID     int64   `db:"quote_id" json:"quote_id"`
	ProductID   int64   `db:"product_id" json:"product_id"`
	Quantity    int     `db:"quantity" json:"quantity"`
	UnitPrice   float64 `db:"unit_price" json:"unit_price"`
	LineTotal   float64 `db:"line_total" json:"line_total"`
	ManualPrice bool    `db:"manual_price" json:"manual_price"`
}

// Approval actions
const (
	ApprovalActionApprove  = "APPROVE"
	ApprovalActionReject   = "REJECT"
	ApprovalActionEscalate = "ESCALATE"
)

// ApprovalLogEntry is an append-only audit record of an approval decision.
type ApprovalLogEntry struct {
	ID         int64     `db:"id" json:"id"`
	QuoteID    int64     `db:"quote_id" json:"quote_id"`
	ApproverID int64     `db:"approver_id" json:"approver_id"`
	Action     string    `db:"action" json:"action"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Order is the record created when an approved quote is converted.
type Order struct {
	ID            int64     `db:"id" json:"id"`
	OrderNumber   string    `db:"order_number" json:"order_number"`
	QuoteID       int64     `db:"quote_id" json:"quote_id"`
	CustomerID    int64     `db:"customer_id" json:"customer_id"`
	OpportunityID *int64    `db:"opportunity_id" json:"opportunity_id,omitempty"`
	TotalAmount   float64   `db:"total_amount" json:"total_amount"`
	CreatedBy     int64     `db:"created_by" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Product represents a catalog product with its floor price. The catalog
// is maintained by an external collaborator; this service only reads it.
type Product struct {
	ID         int64     `db:"id" json:"id"`
	SKU        string    `db:"sku" json:"sku"`
	Name       string    `db:"name" json:"name"`
	FloorPrice float64   `db:"floor_price" json:"floor_price"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// PriceTier is a (min quantity, unit price) volume pricing step.
type PriceTier struct {
	ID          int64   `db:"id" json:"id"`
	ProductID   int64   `db:"product_id" json:"product_id"`
	MinQuantity int     `db:"min_quantity" json:"min_quantity"`
	UnitPrice   float64 `db:"unit_price" json:"unit_price"`
}

// Actor roles supplied by the auth collaborator
const (
	RoleAdministrator = "administrator"
	RoleSalesManager  = "sales-manager"
	RoleFinance       = "finance"
	RoleSalesRep      = "sales-representative"
)

// Actor is the authenticated identity attached to every request.
type Actor struct {
	ID   int64
	Role string
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdministrator
}
