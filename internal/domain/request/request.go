package request

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/threadline/checkout/internal/domain/order"
)

// Type enumerates post-purchase request kinds.
type Type string

const (
	TypeCancel   Type = "CANCEL"
	TypeReturn   Type = "RETURN"
	TypeExchange Type = "EXCHANGE"
)

// ParseType converts a wire token to a Type.
func ParseType(s string) (Type, bool) {
	switch Type(strings.ToUpper(s)) {
	case TypeCancel, TypeReturn, TypeExchange:
		return Type(strings.ToUpper(s)), true
	}
	return "", false
}

// Reason is the closed enumeration of request reasons. ReasonOther requires
// accompanying free-text comments.
type Reason string

const (
	ReasonWrongSize      Reason = "WRONG_SIZE"
	ReasonDamaged        Reason = "DAMAGED"
	ReasonNotAsDescribed Reason = "NOT_AS_DESCRIBED"
	ReasonQuality        Reason = "QUALITY_ISSUE"
	ReasonChangedMind    Reason = "CHANGED_MIND"
	ReasonOther          Reason = "OTHER"
)

var reasons = map[Reason]bool{
	ReasonWrongSize: true, ReasonDamaged: true, ReasonNotAsDescribed: true,
	ReasonQuality: true, ReasonChangedMind: true, ReasonOther: true,
}

// Status is the request's own lifecycle, progressed by staff.
type Status string

const (
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
)

// statusTransitions mirrors the order state machine style: staff-driven CAS
// moves only.
var statusTransitions = map[Status][]Status{
	StatusSubmitted: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusCompleted},
	StatusRejected:  {},
	StatusCompleted: {},
}

// ParseStatus converts a wire token to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusSubmitted, StatusApproved, StatusRejected, StatusCompleted:
		return Status(s), true
	}
	return "", false
}

// BankDetails is the refund payout destination, required only for returns.
type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bank_name"`
}

func (b BankDetails) complete() bool {
	return strings.TrimSpace(b.AccountHolder) != "" &&
		strings.TrimSpace(b.AccountNumber) != "" &&
		strings.TrimSpace(b.IFSC) != "" &&
		strings.TrimSpace(b.BankName) != ""
}

// NotEligibleError reports a request type that is not legal for the order's
// current status, naming the action that would be.
type NotEligibleError struct {
	Type        Type
	OrderStatus order.Status
	Hint        string
}

// IllegalTransitionError reports a rejected request status move.
type IllegalTransitionError struct {
	RequestID string
	From      Status
	To        Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("request %s: illegal transition %s -> %s", e.RequestID, e.From, e.To)
}

func (e *NotEligibleError) Error() string {
	msg := fmt.Sprintf("%s not allowed for order in status %s", e.Type, e.OrderStatus)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Field + " " + e.Reason
}

// Request is a submitted cancel/return/exchange. Immutable once submitted
// except for staff status progression; it never mutates the order itself.
type Request struct {
	ID          string       `json:"id"`
	OrderID     string       `json:"order_id"`
	CustomerID  string       `json:"customer_id"`
	Type        Type         `json:"type"`
	ItemIDs     []string     `json:"item_ids"`
	Reason      Reason       `json:"reason"`
	Comments    string       `json:"comments,omitempty"`
	Attachments []string     `json:"attachments,omitempty"`
	BankDetails *BankDetails `json:"bank_details,omitempty"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ErrNotFound is returned when a requested request row does not exist.
var ErrNotFound = errors.New("request not found")

// Repository defines persistence for post-purchase requests.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	ListByOrder(ctx context.Context, orderID string) ([]Request, error)
	// UpdateStatus is a compare-and-set like the order repository's.
	UpdateStatus(ctx context.Context, id string, expected, next Status) (*Request, bool, error)
}
