package store

import (
	"context"
	"errors"

	"github.com/OldStager01/qps-autoscaler/pkg/models"
)

var (
	// ErrDuplicateActivity signals the unique (group, activity_key) constraint
	// fired. Benign: the same intent was already recorded this time bucket.
	ErrDuplicateActivity = errors.New("duplicate scaling activity")

	ErrGroupNotFound = errors.New("resource group not found")
)

// Catalog reads operator-managed resource group definitions.
type Catalog interface {
	// ListEnabledGroups returns all groups with enabled=true.
	ListEnabledGroups(ctx context.Context) ([]*models.ResourceGroup, error)
}

// StateStore owns per-group runtime state and the append-only audit logs.
// Implementations must be safe for concurrent use; each write is a short
// auto-committed transaction.
type StateStore interface {
	// GetState returns the runtime state row, or a zero-valued state when the
	// group has never been evaluated.
	GetState(ctx context.Context, groupID int) (*models.GroupRuntimeState, error)

	// UpsertState writes the given fields. Unknown field names are dropped
	// with a warning rather than failing the write.
	UpsertState(ctx context.Context, groupID int, fields models.StateFields) error

	// IncrementConsecutiveErrors atomically adds one, inserting the row with
	// value 1 on first error. Returns the new count.
	IncrementConsecutiveErrors(ctx context.Context, groupID int) (int, error)

	// RecordActivity appends one audit row. Returns ErrDuplicateActivity when
	// (group, activity_key) already exists.
	RecordActivity(ctx context.Context, activity *models.ScalingActivity) error

	// RecordError appends one error row. groupID may be nil for
	// controller-level failures. Never returns an error to the caller's hot
	// path beyond reporting; failures here must not mask the original fault.
	RecordError(ctx context.Context, groupID *int, source, message, context string) error
}
