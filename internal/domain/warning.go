package domain

import (
	"context"
	"fmt"
)

// WarningID is the upstream identifier of a bulletin, e.g. "IDQ10090".
type WarningID string

// RawBulletin is the detail payload returned by the warning service.
type RawBulletin struct {
	ProductType  string `json:"productType"`
	Service      string `json:"service"`
	IssueTimeUTC string `json:"issueTimeUtc"`
	ExpiryTime   string `json:"expiryTime"`
	Text         string `json:"text"` // full human-readable bulletin, headline and description included
}

// ParsedWarning is the display form of a bulletin after text parsing.
type ParsedWarning struct {
	ID          WarningID `json:"id"`
	Headline    string    `json:"headline"`
	Description string    `json:"description"`
	IssuedAt    string    `json:"issued_at"` // verbatim issueTimeUtc, not guaranteed parseable
	FullText    string    `json:"full_text"`

	ProductType string `json:"product_type,omitempty"`
	Service     string `json:"service,omitempty"`
	ExpiryTime  string `json:"expiry_time,omitempty"`
}

// WarningSource reads warning identifiers and bulletins from the remote service.
type WarningSource interface {
	// ListWarningIDs returns the identifiers of the active warnings for a region.
	ListWarningIDs(ctx context.Context, region string) ([]WarningID, error)

	// WarningDetail returns the raw bulletin for a single warning.
	WarningDetail(ctx context.Context, id WarningID) (RawBulletin, error)
}

// TransportError reports a non-success HTTP response from the warning service.
type TransportError struct {
	Op         string // "list" or "detail"
	StatusCode int
	Body       string
}

// Error reports the operation, status code, and response body.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s warnings: http status %d: %s", e.Op, e.StatusCode, e.Body)
}
