package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/shortcode"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// codeReserver finds an unused short code and stores the link under it.
//
// The FindByCode pre-check only filters out most collisions. Two creators can
// both see a code as free, so the store's unique constraint decides: a
// duplicate rejection on insert is retried with a fresh code, never returned.
type codeReserver struct {
	repo        ports.LinkRepository
	gen         shortcode.Generator
	maxAttempts int
	storeCtx    func(context.Context) (context.Context, context.CancelFunc)
}

// reserve sets link.ShortCode and inserts link.
func (r *codeReserver) reserve(ctx context.Context, link *domain.Link) error {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		code := r.gen.Generate()

		taken, err := r.taken(ctx, code)
		if err != nil {
			return err
		}
		if taken {
			log.Debug().Str("short_code", code).Int("attempt", attempt).Msg("short code taken, regenerating")
			continue
		}

		link.ShortCode = code
		err = r.insert(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateCode) {
			link.ShortCode = ""
			return domain.NewStorageError("insert link", err)
		}
		log.Debug().Str("short_code", code).Int("attempt", attempt).Msg("short code claimed concurrently, regenerating")
	}

	link.ShortCode = ""
	return errors.Wrapf(domain.ErrCodeSpaceExhausted, "gave up after %d attempts", r.maxAttempts)
}

func (r *codeReserver) taken(ctx context.Context, code string) (bool, error) {
	ctx, cancel := r.storeCtx(ctx)
	defer cancel()
	existing, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		return false, domain.NewStorageError("check short code", err)
	}
	return existing != nil, nil
}

func (r *codeReserver) insert(ctx context.Context, link *domain.Link) error {
	ctx, cancel := r.storeCtx(ctx)
	defer cancel()
	return r.repo.InsertUnique(ctx, link)
}
