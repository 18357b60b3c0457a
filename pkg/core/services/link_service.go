package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/shortcode"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

// Options tune the link service.
type Options struct {
	MaxCodeAttempts  int           // Candidate codes tried before ErrCodeSpaceExhausted
	DefaultTTL       time.Duration // Expiry applied when none is supplied
	StoreTimeout     time.Duration // Upper bound for each store call, 0 disables
	EnforceOwnership bool          // Restrict Get/Update/SoftDelete to the link owner
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxCodeAttempts:  10,
		DefaultTTL:       30 * 24 * time.Hour,
		StoreTimeout:     3 * time.Second,
		EnforceOwnership: true,
	}
}

type LinkService struct {
	repo  ports.LinkRepository
	codes *codeReserver
	clock domain.Clock
	opts  Options
}

func NewLinkService(repo ports.LinkRepository, gen shortcode.Generator, clock domain.Clock, opts Options) *LinkService {
	if opts.MaxCodeAttempts < 1 {
		opts.MaxCodeAttempts = DefaultOptions().MaxCodeAttempts
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultOptions().DefaultTTL
	}
	s := &LinkService{
		repo:  repo,
		clock: clock,
		opts:  opts,
	}
	s.codes = &codeReserver{
		repo:        repo,
		gen:         gen,
		maxAttempts: opts.MaxCodeAttempts,
		storeCtx:    s.storeCtx,
	}
	return s
}

func (s *LinkService) Create(ctx context.Context, in domain.CreateLinkInput) (*domain.Link, error) {
	originalURL := strings.TrimSpace(in.OriginalURL)
	if originalURL == "" {
		return nil, errors.Wrap(domain.ErrMissingField, "original_url")
	}

	expiresAt, err := domain.ParseExpiry(in.ExpiresAt)
	if err != nil {
		return nil, errors.Wrapf(err, "expires_at %q", in.ExpiresAt)
	}

	now := s.clock.Now()
	if expiresAt == nil {
		t := now.Add(s.opts.DefaultTTL)
		expiresAt = &t
	}

	link := &domain.Link{
		OriginalURL: originalURL,
		OwnerID:     in.OwnerID,
		Title:       in.Title,
		IsActive:    true,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(in.UTM) > 0 {
		link.UTM = make(map[string]string, len(in.UTM))
		for k, v := range in.UTM {
			link.UTM[k] = v
		}
	}

	if err := s.codes.reserve(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// Resolve returns the redirect target for code and counts the click.
// Returns domain.ErrNotFoundOrInactive for unknown or deactivated codes and
// domain.ErrExpired for codes past their expiry. Records do not keep the
// reason they were deactivated, so a soft-deleted link whose expiry has also
// passed reports domain.ErrExpired. A link deactivated after the lookup but
// before the click is counted reports domain.ErrNotFoundOrInactive.
func (s *LinkService) Resolve(ctx context.Context, code string) (string, error) {
	link, err := s.findActive(ctx, code)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	if link == nil {
		// An inactive link past its expiry keeps reporting Expired.
		prior, err := s.find(ctx, code)
		if err != nil {
			return "", err
		}
		if prior != nil && prior.IsExpired(now) {
			return "", domain.ErrExpired
		}
		return "", domain.ErrNotFoundOrInactive
	}

	if link.IsExpired(now) {
		// Best-effort: every later resolve re-checks the expiry anyway.
		if err := s.deactivate(ctx, code); err != nil {
			log.Warn().Err(err).Str("short_code", code).Msg("failed to deactivate expired link")
		}
		return "", domain.ErrExpired
	}

	if err := s.incrementClicks(ctx, code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNotFoundOrInactive
		}
		return "", err
	}
	return link.OriginalURL, nil
}

// Get returns the full record for the owner's management view.
func (s *LinkService) Get(ctx context.Context, callerID, code string) (*domain.Link, error) {
	link, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.authorize(callerID, link); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *LinkService) Update(ctx context.Context, callerID, code string, upd domain.LinkUpdate) (*domain.Link, error) {
	link, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.authorize(callerID, link); err != nil {
		return nil, err
	}

	patch, err := s.buildPatch(upd)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	updated, err := s.repo.UpdateFields(sctx, code, patch)
	if err != nil {
		return nil, storageErr("update link", err)
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}
	return updated, nil
}

// SoftDelete deactivates the link. Deleting an inactive link succeeds without a write.
func (s *LinkService) SoftDelete(ctx context.Context, callerID, code string) error {
	link, err := s.find(ctx, code)
	if err != nil {
		return err
	}
	if link == nil {
		return domain.ErrNotFound
	}
	if err := s.authorize(callerID, link); err != nil {
		return err
	}
	if !link.IsActive {
		return nil
	}
	return s.deactivate(ctx, code)
}

func (s *LinkService) ListByOwner(ctx context.Context, ownerID string, page, pageSize int) (*domain.LinkPage, error) {
	if ownerID == "" {
		return nil, errors.Wrap(domain.ErrMissingField, "owner_id")
	}
	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	links, total, err := s.repo.FindByOwner(sctx, ownerID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, storageErr("list links", err)
	}
	if links == nil {
		links = []domain.Link{}
	}

	return &domain.LinkPage{
		Links:      links,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		TotalItems: total,
	}, nil
}

// DeactivateExpired deactivates every active link already past its expiry.
func (s *LinkService) DeactivateExpired(ctx context.Context) (int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	n, err := s.repo.DeactivateExpired(sctx, s.clock.Now())
	if err != nil {
		return 0, storageErr("deactivate expired links", err)
	}
	return n, nil
}

func (s *LinkService) authorize(callerID string, link *domain.Link) error {
	if !s.opts.EnforceOwnership {
		return nil
	}
	if link.OwnerID == "" || link.OwnerID != callerID {
		return domain.ErrForbidden
	}
	return nil
}

func (s *LinkService) buildPatch(upd domain.LinkUpdate) (domain.LinkPatch, error) {
	patch := domain.LinkPatch{
		Title:     upd.Title,
		UTM:       upd.UTM,
		UpdatedAt: s.clock.Now(),
	}
	if upd.OriginalURL != nil {
		originalURL := strings.TrimSpace(*upd.OriginalURL)
		if originalURL == "" {
			return patch, errors.Wrap(domain.ErrMissingField, "original_url")
		}
		patch.OriginalURL = &originalURL
	}
	if upd.ExpiresAt != nil {
		expiresAt, err := domain.ParseExpiry(*upd.ExpiresAt)
		if err != nil {
			return patch, errors.Wrapf(err, "expires_at %q", *upd.ExpiresAt)
		}
		if expiresAt == nil {
			patch.ClearExpiry = true
		}
		patch.ExpiresAt = expiresAt
	}
	return patch, nil
}

// storeCtx bounds a single store call by the configured timeout.
func (s *LinkService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

func (s *LinkService) find(ctx context.Context, code string) (*domain.Link, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	link, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, storageErr("find link", err)
	}
	return link, nil
}

func (s *LinkService) findActive(ctx context.Context, code string) (*domain.Link, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	link, err := s.repo.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, storageErr("find active link", err)
	}
	return link, nil
}

func (s *LinkService) deactivate(ctx context.Context, code string) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return storageErr("deactivate link", s.repo.Deactivate(ctx, code))
}

func (s *LinkService) incrementClicks(ctx context.Context, code string) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return storageErr("increment click count", s.repo.IncrementClickCount(ctx, code))
}

// storageErr passes domain conditions through and marks everything else as a storage failure.
func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDuplicateCode):
		return err
	default:
		return domain.NewStorageError(op, err)
	}
}

// Ensure interface compliance
var _ ports.LinkService = (*LinkService)(nil)
