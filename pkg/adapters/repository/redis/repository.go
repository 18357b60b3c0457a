// Package redis stores links as Redis hashes with sorted-set indexes for
// owner listings and expiry sweeps. Every mutation runs as a Lua script so
// uniqueness and index maintenance are atomic.
package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	goRedis "github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const defaultPrefix = "shortlink:"

type Repository struct {
	client goRedis.UniversalClient
	prefix string
}

// NewRepository uses client with keys under prefix. An empty prefix selects "shortlink:".
func NewRepository(client goRedis.UniversalClient, prefix string) *Repository {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Repository{client: client, prefix: prefix}
}

// NewRepositoryFromURL connects to a redis:// or rediss:// URL and checks the connection.
func NewRepositoryFromURL(ctx context.Context, url string) (*Repository, error) {
	opts, err := goRedis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := goRedis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return NewRepository(client, ""), nil
}

func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) linkKey(code string) string   { return r.prefix + "link:" + code }
func (r *Repository) ownerKey(owner string) string { return r.prefix + "owner:" + owner }
func (r *Repository) expiryKey() string            { return r.prefix + "expiry" }
func (r *Repository) codesKey() string             { return r.prefix + "codes" }

func (r *Repository) InsertUnique(ctx context.Context, link *domain.Link) error {
	now := time.Now()
	createdAt, updatedAt := link.CreatedAt, link.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	stored := link.Clone()
	stored.ID = uuid.NewString()
	stored.CreatedAt = createdAt
	stored.UpdatedAt = updatedAt

	fields, err := encodeLink(stored)
	if err != nil {
		return err
	}

	expiryScore := ""
	if stored.ExpiresAt != nil {
		expiryScore = score(*stored.ExpiresAt)
	}
	args := append([]interface{}{
		stored.ShortCode, score(createdAt), expiryScore, flag(stored.IsActive), flag(stored.OwnerID != ""),
	}, fields...)

	ownerKey := r.ownerKey(stored.OwnerID)
	res, err := insertScript.Run(ctx, r.client,
		[]string{r.linkKey(stored.ShortCode), r.codesKey(), ownerKey, r.expiryKey()}, args...,
	).Int64()
	if err != nil {
		return errors.Wrap(err, "insert link")
	}
	if res == 0 {
		return domain.ErrDuplicateCode
	}

	link.ID = stored.ID
	link.CreatedAt = createdAt
	link.UpdatedAt = updatedAt
	return nil
}

func (r *Repository) FindByCode(ctx context.Context, code string) (*domain.Link, error) {
	fields, err := r.client.HGetAll(ctx, r.linkKey(code)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "find link")
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeLink(fields)
}

func (r *Repository) FindActiveByCode(ctx context.Context, code string) (*domain.Link, error) {
	link, err := r.FindByCode(ctx, code)
	if err != nil || link == nil || !link.IsActive {
		return nil, err
	}
	return link, nil
}

func (r *Repository) UpdateFields(ctx context.Context, code string, patch domain.LinkPatch) (*domain.Link, error) {
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	fields := []interface{}{"updated_at", nanos(updatedAt)}
	if patch.OriginalURL != nil {
		fields = append(fields, "original_url", *patch.OriginalURL)
	}
	if patch.Title != nil {
		fields = append(fields, "title", *patch.Title)
	}
	if patch.UTM != nil {
		utm, err := encodeUTM(patch.UTM)
		if err != nil {
			return nil, err
		}
		fields = append(fields, "utm", utm)
	}

	mode, expiryScore := "keep", ""
	switch {
	case patch.ClearExpiry:
		mode = "clear"
		fields = append(fields, "expires_at", "")
	case patch.ExpiresAt != nil:
		mode, expiryScore = "set", score(*patch.ExpiresAt)
		fields = append(fields, "expires_at", micros(*patch.ExpiresAt))
	}

	args := append([]interface{}{code, mode, expiryScore}, fields...)
	res, err := updateScript.Run(ctx, r.client, []string{r.linkKey(code), r.expiryKey()}, args...).StringSlice()
	if err == goRedis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "update link")
	}

	hash := make(map[string]string, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		hash[res[i]] = res[i+1]
	}
	return decodeLink(hash)
}

func (r *Repository) IncrementClickCount(ctx context.Context, code string) error {
	err := incrementScript.Run(ctx, r.client, []string{r.linkKey(code)}).Err()
	if err == goRedis.Nil {
		return domain.ErrNotFound
	}
	return errors.Wrap(err, "increment click count")
}

func (r *Repository) Deactivate(ctx context.Context, code string) error {
	_, err := r.deactivate(ctx, code, "")
	return err
}

// deactivate flips is_active and drops the code from the owner and expiry
// indexes. A non-empty expectExpiry makes it conditional on the stored expiry.
// The owner is read first so the script declares every key it touches.
func (r *Repository) deactivate(ctx context.Context, code, expectExpiry string) (bool, error) {
	owner, err := r.client.HGet(ctx, r.linkKey(code), "owner_id").Result()
	if err == goRedis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "read link owner")
	}

	n, err := deactivateScript.Run(ctx, r.client,
		[]string{r.linkKey(code), r.expiryKey(), r.ownerKey(owner)},
		code, owner, nanos(time.Now()), expectExpiry,
	).Int64()
	if err != nil {
		return false, errors.Wrap(err, "deactivate link")
	}
	if n == -1 {
		return false, errors.Errorf("deactivate link %s: owner changed", code)
	}
	return n == 1, nil
}

func (r *Repository) FindByOwner(ctx context.Context, ownerID string, skip, limit int) ([]domain.Link, int64, error) {
	key := r.ownerKey(ownerID)
	total, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return nil, 0, errors.Wrap(err, "count owner links")
	}
	if limit <= 0 || int64(skip) >= total {
		return []domain.Link{}, total, nil
	}

	codes, err := r.client.ZRevRange(ctx, key, int64(skip), int64(skip+limit-1)).Result()
	if err != nil {
		return nil, 0, errors.Wrap(err, "list owner links")
	}
	links, err := r.loadAll(ctx, codes)
	if err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

func (r *Repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	// Scores lose precision past 2^53 microseconds, so candidates are re-checked in Go.
	codes, err := r.client.ZRangeByScore(ctx, r.expiryKey(), &goRedis.ZRangeBy{
		Min: "-inf",
		Max: score(now),
	}).Result()
	if err != nil {
		return 0, errors.Wrap(err, "scan expiry index")
	}

	var n int64
	for _, code := range codes {
		link, err := r.FindByCode(ctx, code)
		if err != nil {
			return n, err
		}
		if link == nil || !link.IsActive || !link.IsExpired(now) {
			continue
		}
		changed, err := r.deactivate(ctx, code, micros(*link.ExpiresAt))
		if err != nil {
			return n, err
		}
		if changed {
			n++
		}
	}
	return n, nil
}

func (r *Repository) Dump(ctx context.Context) ([]domain.Link, error) {
	codes, err := r.client.ZRevRange(ctx, r.codesKey(), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list codes")
	}
	return r.loadAll(ctx, codes)
}

func (r *Repository) loadAll(ctx context.Context, codes []string) ([]domain.Link, error) {
	if len(codes) == 0 {
		return []domain.Link{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*goRedis.MapStringStringCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.HGetAll(ctx, r.linkKey(code))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "load links")
	}

	links := make([]domain.Link, 0, len(codes))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		link, err := decodeLink(fields)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	return links, nil
}

func encodeLink(l *domain.Link) ([]interface{}, error) {
	utm, err := encodeUTM(l.UTM)
	if err != nil {
		return nil, err
	}
	expiresAt := ""
	if l.ExpiresAt != nil {
		expiresAt = micros(*l.ExpiresAt)
	}
	return []interface{}{
		"id", l.ID,
		"original_url", l.OriginalURL,
		"short_code", l.ShortCode,
		"owner_id", l.OwnerID,
		"title", l.Title,
		"utm", utm,
		"is_active", flag(l.IsActive),
		"expires_at", expiresAt,
		"click_count", strconv.FormatInt(l.ClickCount, 10),
		"created_at", nanos(l.CreatedAt),
		"updated_at", nanos(l.UpdatedAt),
	}, nil
}

func decodeLink(f map[string]string) (*domain.Link, error) {
	link := &domain.Link{
		ID:          f["id"],
		OriginalURL: f["original_url"],
		ShortCode:   f["short_code"],
		OwnerID:     f["owner_id"],
		Title:       f["title"],
		IsActive:    f["is_active"] == "1",
	}

	var err error
	if link.ClickCount, err = parseInt(f["click_count"]); err != nil {
		return nil, errors.Wrapf(err, "decode click_count of %s", link.ShortCode)
	}
	if link.CreatedAt, err = parseNanos(f["created_at"]); err != nil {
		return nil, errors.Wrapf(err, "decode created_at of %s", link.ShortCode)
	}
	if link.UpdatedAt, err = parseNanos(f["updated_at"]); err != nil {
		return nil, errors.Wrapf(err, "decode updated_at of %s", link.ShortCode)
	}
	if raw := f["expires_at"]; raw != "" {
		n, err := parseInt(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decode expires_at of %s", link.ShortCode)
		}
		t := time.UnixMicro(n).UTC()
		link.ExpiresAt = &t
	}
	if raw := f["utm"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &link.UTM); err != nil {
			return nil, errors.Wrapf(err, "decode utm of %s", link.ShortCode)
		}
	}
	return link, nil
}

func encodeUTM(utm map[string]string) (string, error) {
	if len(utm) == 0 {
		return "", nil
	}
	b, err := json.Marshal(utm)
	if err != nil {
		return "", errors.Wrap(err, "encode utm")
	}
	return string(b), nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseNanos(s string) (time.Time, error) {
	n, err := parseInt(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}

func nanos(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

// micros encodes expires_at, which may lie far outside the UnixNano range.
func micros(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

// score is the sorted-set score of t.
func score(t time.Time) string {
	return micros(t)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Ensure interface compliance
var _ ports.LinkRepository = (*Repository)(nil)
