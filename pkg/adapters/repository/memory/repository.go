// Package memory provides a thread-safe in-memory LinkRepository.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

type Repository struct {
	mu    sync.RWMutex
	links map[string]*domain.Link // by short code
}

func NewRepository() *Repository {
	return &Repository{
		links: make(map[string]*domain.Link),
	}
}

func (r *Repository) InsertUnique(ctx context.Context, link *domain.Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.ShortCode]; exists {
		return domain.ErrDuplicateCode
	}

	now := time.Now()
	link.ID = uuid.NewString()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	if link.UpdatedAt.IsZero() {
		link.UpdatedAt = link.CreatedAt
	}
	r.links[link.ShortCode] = link.Clone()
	return nil
}

func (r *Repository) FindByCode(ctx context.Context, code string) (*domain.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[code]
	if !ok {
		return nil, nil
	}
	return link.Clone(), nil
}

func (r *Repository) FindActiveByCode(ctx context.Context, code string) (*domain.Link, error) {
	link, err := r.FindByCode(ctx, code)
	if err != nil || link == nil || !link.IsActive {
		return nil, err
	}
	return link, nil
}

func (r *Repository) UpdateFields(ctx context.Context, code string, patch domain.LinkPatch) (*domain.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok {
		return nil, nil
	}
	patch.Apply(link)
	return link.Clone(), nil
}

func (r *Repository) IncrementClickCount(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok || !link.IsActive {
		return domain.ErrNotFound
	}
	link.ClickCount++
	return nil
}

func (r *Repository) Deactivate(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if link, ok := r.links[code]; ok && link.IsActive {
		link.IsActive = false
		link.UpdatedAt = time.Now()
	}
	return nil
}

func (r *Repository) FindByOwner(ctx context.Context, ownerID string, skip, limit int) ([]domain.Link, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	var owned []domain.Link
	for _, link := range r.links {
		if link.OwnerID == ownerID && link.IsActive {
			owned = append(owned, *link.Clone())
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(owned)

	total := int64(len(owned))
	if skip >= len(owned) {
		return []domain.Link{}, total, nil
	}
	end := skip + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[skip:end], total, nil
}

func (r *Repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, link := range r.links {
		if link.IsActive && link.IsExpired(now) {
			link.IsActive = false
			link.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *Repository) Dump(ctx context.Context) ([]domain.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	links := make([]domain.Link, 0, len(r.links))
	for _, link := range r.links {
		links = append(links, *link.Clone())
	}
	r.mu.RUnlock()

	sortNewestFirst(links)
	return links, nil
}

// sortNewestFirst orders by CreatedAt descending, short code breaking ties.
func sortNewestFirst(links []domain.Link) {
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.After(links[j].CreatedAt)
		}
		return links[i].ShortCode > links[j].ShortCode
	})
}

// Ensure interface compliance
var _ ports.LinkRepository = (*Repository)(nil)

// Close is a no-op; it lets the memory store stand in for durable ones.
func (r *Repository) Close() error {
	return nil
}
