/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal engine model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/thornwood/reagent-bank/bank"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// MovedItemDTO reports one item moved by a deposit or withdrawal.
type MovedItemDTO struct {
	ItemID uint32 `json:"itemId"`
	Name   string `json:"name"`
	Amount uint64 `json:"amount"`
}

// MoveResponse wraps the outcome of a deposit or withdrawal. Empty=true with
// no items is informational (nothing eligible, or nothing fit), not an error.
type MoveResponse struct {
	Items []MovedItemDTO `json:"items"`
	Empty bool           `json:"empty"`
}

// CategorySummaryDTO is one line of the bank's category overview.
type CategorySummaryDTO struct {
	Category uint32 `json:"category"`
	Name     string `json:"name"`
	Distinct uint32 `json:"distinctItems"`
	Total    uint64 `json:"totalAmount"`
}

// CategoryPageDTO is one page of a category's stored items.
type CategoryPageDTO struct {
	Category    uint32         `json:"category"`
	Name        string         `json:"name"`
	Page        int            `json:"page"`
	TotalPages  int            `json:"totalPages"`
	TotalItems  int            `json:"totalItems"`
	TotalAmount uint64         `json:"totalAmount"`
	Items       []MovedItemDTO `json:"items"`
}

// ActionTotalsDTO aggregates the audit log per action.
type ActionTotalsDTO struct {
	Action string `json:"action"`
	Events uint64 `json:"events"`
	Total  int64  `json:"totalAmount"`
}

// MoverDTO is one high-traffic item in the audit report. Net is
// deposits minus withdrawals.
type MoverDTO struct {
	ItemID   uint32 `json:"itemId"`
	Name     string `json:"name"`
	Category uint32 `json:"category"`
	Net      int64  `json:"net"`
}

// AuditEventDTO is one audit log entry.
type AuditEventDTO struct {
	ID          int64  `json:"id"`
	Timestamp   int64  `json:"timestamp"`
	AccountID   uint32 `json:"accountId"`
	CharacterID uint32 `json:"characterId"`
	Action      string `json:"action"`
	ItemID      uint32 `json:"itemId"`
	Category    uint32 `json:"category"`
	Delta       int64  `json:"delta"`
}

// AuditReportDTO is the operator audit summary.
type AuditReportDTO struct {
	Totals      []ActionTotalsDTO `json:"totals"`
	TopMovers   []MoverDTO        `json:"topMovers"`
	Events      []AuditEventDTO   `json:"events"`
	TotalEvents uint64            `json:"totalEvents"`
	Page        int               `json:"page"`
	PageSize    int               `json:"pageSize"`
}

// PurgeRequest scopes an operator purge. CharacterID 0 covers every character
// under the account; OlderThanSeconds 0 purges everything in scope.
type PurgeRequest struct {
	AccountID        uint32 `json:"accountId"`
	CharacterID      uint32 `json:"characterId"`
	OlderThanSeconds int64  `json:"olderThanSeconds"`
}

// PurgeResponse reports how many audit rows were deleted.
type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toMovedItems(items []bank.ItemQuantity) []MovedItemDTO {
	out := make([]MovedItemDTO, len(items))
	for i, it := range items {
		out[i] = MovedItemDTO{ItemID: it.ItemID, Name: it.Name, Amount: it.Amount}
	}
	return out
}
