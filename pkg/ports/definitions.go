package ports

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

// LinkRepository defines storage operations for links.
// Implementations must be safe for concurrent use; every method is a single atomic step.
type LinkRepository interface {
	// InsertUnique assigns ID (and CreatedAt/UpdatedAt when zero) and stores the link.
	// Returns domain.ErrDuplicateCode if the short code is taken.
	InsertUnique(ctx context.Context, link *domain.Link) error
	// FindByCode returns nil, nil when no link holds the code.
	FindByCode(ctx context.Context, code string) (*domain.Link, error)
	// FindActiveByCode is FindByCode constrained to active links.
	FindActiveByCode(ctx context.Context, code string) (*domain.Link, error)
	// UpdateFields applies the patch and returns the stored result, nil, nil when absent.
	UpdateFields(ctx context.Context, code string, patch domain.LinkPatch) (*domain.Link, error)
	// IncrementClickCount adds one to the click counter. Returns domain.ErrNotFound when absent.
	IncrementClickCount(ctx context.Context, code string) error
	Deactivate(ctx context.Context, code string) error // Soft delete
	// FindByOwner lists active links of an owner, newest first, with the total active count.
	FindByOwner(ctx context.Context, ownerID string, skip, limit int) ([]domain.Link, int64, error)
	// DeactivateExpired deactivates active links whose expiry is before now.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	Dump(ctx context.Context) ([]domain.Link, error) // For migration
}

// LinkService defines the business logic operations
type LinkService interface {
	Create(ctx context.Context, in domain.CreateLinkInput) (*domain.Link, error)
	Resolve(ctx context.Context, code string) (string, error)
	Get(ctx context.Context, callerID, code string) (*domain.Link, error)
	Update(ctx context.Context, callerID, code string, upd domain.LinkUpdate) (*domain.Link, error)
	SoftDelete(ctx context.Context, callerID, code string) error
	ListByOwner(ctx context.Context, ownerID string, page, pageSize int) (*domain.LinkPage, error)
	DeactivateExpired(ctx context.Context) (int64, error)
}
