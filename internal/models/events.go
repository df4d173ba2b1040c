package models

import "time"

// Event types
const (
	EventTypeCustomerClaimed  = "CUSTOMER_CLAIMED"
	EventTypeCustomerReleased = "CUSTOMER_RELEASED"
	EventTypeCustomerDeleted  = "CUSTOMER_DELETED"
	EventTypeStageChanged     = "OPPORTUNITY_STAGE_CHANGED"
	EventTypeQuoteSubmitted   = "QUOTE_SUBMITTED"
	EventTypeQuoteApproved    = "QUOTE_APPROVED"
	EventTypeQuoteRejected    = "QUOTE_REJECTED"
	EventTypeQuoteConverted   = "QUOTE_CONVERTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CustomerClaimedEvent published when a customer moves to an owner's
// private pool.
type CustomerClaimedEvent struct {
	BaseEvent
	CustomerID int64 `json:"customer_id"`
	OwnerID    int64 `json:"owner_id"`
}

// CustomerReleasedEvent published when a customer returns to the public
// pool, manually or by the inactivity reclaim.
type CustomerReleasedEvent struct {
	BaseEvent
	CustomerID    int64 `json:"customer_id"`
	PreviousOwner int64 `json:"previous_owner"`
	AutoReclaimed bool  `json:"auto_reclaimed"`
}

// CustomerDeletedEvent published after a delete (cascaded or not).
type CustomerDeletedEvent struct {
	BaseEvent
	CustomerID    int64  `json:"customer_id"`
	PreviousOwner *int64 `json:"previous_owner,omitempty"`
	Cascaded      bool   `json:"cascaded"`
}

// StageChangedEvent published on every opportunity stage transition.
type StageChangedEvent struct {
	BaseEvent
	OpportunityID int64  `json:"opportunity_id"`
	FromStage     string `json:"from_stage"`
	ToStage       string `json:"to_stage"`
	Probability   int    `json:"probability"`
}

// QuoteSubmittedEvent published when a quote enters an approval queue.
type QuoteSubmittedEvent struct {
	BaseEvent
	QuoteID     int64   `json:"quote_id"`
	QuoteNumber string  `json:"quote_number"`
	TotalAmount float64 `json:"total_amount"`
	Escalated   bool    `json:"escalated"`
}

// QuoteDecisionEvent published for approve and reject decisions.
type QuoteDecisionEvent struct {
	BaseEvent
	QuoteID    int64  `json:"quote_id"`
	ApproverID int64  `json:"approver_id"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
}

// QuoteConvertedEvent published when an approved quote becomes an order.
type QuoteConvertedEvent struct {
	BaseEvent
	QuoteID     int64   `json:"quote_id"`
	OrderID     int64   `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	CustomerID  int64   `json:"customer_id"`
	TotalAmount float64 `json:"total_amount"`
}
