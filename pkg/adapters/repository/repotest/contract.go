// Package repotest holds the behaviour every ports.LinkRepository must share.
// Each adapter runs it from its own tests.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// Factory returns an empty repository. It is called once per subtest.
type Factory func(t *testing.T) ports.LinkRepository

var base = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// Run executes the contract suite against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, repo ports.LinkRepository)
	}{
		{"InsertUnique and FindByCode round trip", testRoundTrip},
		{"InsertUnique rejects a taken code", testDuplicate},
		{"InsertUnique concurrent same code", testConcurrentDuplicate},
		{"FindByCode missing", testFindMissing},
		{"FindActiveByCode skips inactive", testFindActive},
		{"UpdateFields", testUpdateFields},
		{"UpdateFields missing", testUpdateMissing},
		{"IncrementClickCount concurrent", testIncrementConcurrent},
		{"IncrementClickCount missing", testIncrementMissing},
		{"IncrementClickCount inactive", testIncrementInactive},
		{"Deactivate is idempotent", testDeactivate},
		{"FindByOwner pagination", testFindByOwner},
		{"DeactivateExpired", testDeactivateExpired},
		{"Dump", testDump},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newRepo(t))
		})
	}
}

// NewLink builds an active link created at base plus offset.
func NewLink(code, owner string, offset time.Duration) *domain.Link {
	created := base.Add(offset)
	expires := created.Add(30 * 24 * time.Hour)
	return &domain.Link{
		OriginalURL: "https://example.com/" + code,
		ShortCode:   code,
		OwnerID:     owner,
		IsActive:    true,
		ExpiresAt:   &expires,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func insert(t *testing.T, repo ports.LinkRepository, link *domain.Link) {
	t.Helper()
	require.NoError(t, repo.InsertUnique(context.Background(), link))
}

func testRoundTrip(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	link := NewLink("abc1234", "u1", 0)
	link.Title = "campaign"
	link.UTM = map[string]string{"utm_source": "newsletter", "utm_medium": "email"}

	require.NoError(t, repo.InsertUnique(ctx, link))
	assert.NotEmpty(t, link.ID)

	found, err := repo.FindByCode(ctx, "abc1234")
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, link.ID, found.ID)
	assert.Equal(t, "https://example.com/abc1234", found.OriginalURL)
	assert.Equal(t, "u1", found.OwnerID)
	assert.Equal(t, "campaign", found.Title)
	assert.Equal(t, link.UTM, found.UTM)
	assert.True(t, found.IsActive)
	assert.Equal(t, int64(0), found.ClickCount)
	require.NotNil(t, found.ExpiresAt)
	assert.True(t, link.ExpiresAt.Equal(*found.ExpiresAt))
	assert.True(t, link.CreatedAt.Equal(found.CreatedAt))

	anonymous := NewLink("anon001", "", time.Second)
	anonymous.ExpiresAt = nil
	insert(t, repo, anonymous)

	found, err = repo.FindByCode(ctx, "anon001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Empty(t, found.OwnerID)
	assert.Nil(t, found.ExpiresAt)

	edges := map[string]time.Time{
		"edge001": time.Date(9999, 12, 31, 23, 59, 59, 999999000, time.UTC),
		"edge002": time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
		"edge003": time.Date(1600, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	for code, expires := range edges {
		expires := expires
		link := NewLink(code, "u1", 2*time.Second)
		link.ExpiresAt = &expires
		insert(t, repo, link)

		found, err := repo.FindByCode(ctx, code)
		require.NoError(t, err)
		require.NotNil(t, found)
		require.NotNil(t, found.ExpiresAt)
		assert.True(t, expires.Equal(*found.ExpiresAt), "%s: got %s want %s", code, found.ExpiresAt, expires)
	}

	// Far-future expiries survive a sweep; the pre-1678 one does not.
	n, err := repo.DeactivateExpired(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	found, err = repo.FindActiveByCode(ctx, "edge001")
	require.NoError(t, err)
	assert.NotNil(t, found)
	found, err = repo.FindActiveByCode(ctx, "edge003")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testDuplicate(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	insert(t, repo, NewLink("dup0001", "u1", 0))
	require.NoError(t, repo.Deactivate(ctx, "dup0001"))

	err := repo.InsertUnique(ctx, NewLink("dup0001", "u2", time.Second))
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)

	found, err := repo.FindByCode(ctx, "dup0001")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.OwnerID)
}

func testConcurrentDuplicate(t *testing.T, repo ports.LinkRepository) {
	const workers = 20
	var (
		wg         sync.WaitGroup
		successes  atomic.Int32
		duplicates atomic.Int32
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.InsertUnique(context.Background(), NewLink("race001", fmt.Sprintf("u%d", i), 0))
			switch {
			case err == nil:
				successes.Add(1)
			case assert.ErrorIs(t, err, domain.ErrDuplicateCode):
				duplicates.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), duplicates.Load())
}

func testFindMissing(t *testing.T, repo ports.LinkRepository) {
	found, err := repo.FindByCode(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, found)

	found, err = repo.FindActiveByCode(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func testFindActive(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	insert(t, repo, NewLink("act0001", "u1", 0))

	found, err := repo.FindActiveByCode(ctx, "act0001")
	require.NoError(t, err)
	require.NotNil(t, found)

	require.NoError(t, repo.Deactivate(ctx, "act0001"))

	found, err = repo.FindActiveByCode(ctx, "act0001")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = repo.FindByCode(ctx, "act0001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.False(t, found.IsActive)
}

func testUpdateFields(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	link := NewLink("upd0001", "u1", 0)
	link.Title = "before"
	link.UTM = map[string]string{"utm_source": "a"}
	insert(t, repo, link)

	newURL := "https://example.com/changed"
	updatedAt := base.Add(time.Hour)
	updated, err := repo.UpdateFields(ctx, "upd0001", domain.LinkPatch{
		OriginalURL: &newURL,
		UTM:         map[string]string{"utm_campaign": "spring"},
		UpdatedAt:   updatedAt,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, newURL, updated.OriginalURL)
	assert.Equal(t, "before", updated.Title)
	assert.Equal(t, map[string]string{"utm_campaign": "spring"}, updated.UTM)
	assert.Equal(t, "upd0001", updated.ShortCode)
	assert.Equal(t, link.ID, updated.ID)
	assert.True(t, updatedAt.Equal(updated.UpdatedAt))
	require.NotNil(t, updated.ExpiresAt)

	updated, err = repo.UpdateFields(ctx, "upd0001", domain.LinkPatch{ClearExpiry: true, UpdatedAt: updatedAt})
	require.NoError(t, err)
	assert.Nil(t, updated.ExpiresAt)

	stored, err := repo.FindByCode(ctx, "upd0001")
	require.NoError(t, err)
	assert.Equal(t, newURL, stored.OriginalURL)
	assert.Nil(t, stored.ExpiresAt)
}

func testUpdateMissing(t *testing.T, repo ports.LinkRepository) {
	title := "x"
	updated, err := repo.UpdateFields(context.Background(), "missing", domain.LinkPatch{Title: &title, UpdatedAt: base})
	assert.NoError(t, err)
	assert.Nil(t, updated)
}

func testIncrementConcurrent(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	insert(t, repo, NewLink("clk0001", "u1", 0))

	const clicks = 50
	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.IncrementClickCount(ctx, "clk0001"))
		}()
	}
	wg.Wait()

	found, err := repo.FindByCode(ctx, "clk0001")
	require.NoError(t, err)
	assert.Equal(t, int64(clicks), found.ClickCount)
}

func testIncrementMissing(t *testing.T, repo ports.LinkRepository) {
	err := repo.IncrementClickCount(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testIncrementInactive(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	insert(t, repo, NewLink("clk0002", "u1", 0))
	require.NoError(t, repo.IncrementClickCount(ctx, "clk0002"))
	require.NoError(t, repo.Deactivate(ctx, "clk0002"))

	err := repo.IncrementClickCount(ctx, "clk0002")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	found, err := repo.FindByCode(ctx, "clk0002")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.ClickCount)
}

func testDeactivate(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	insert(t, repo, NewLink("del0001", "u1", 0))

	require.NoError(t, repo.Deactivate(ctx, "del0001"))
	require.NoError(t, repo.Deactivate(ctx, "del0001"))

	found, err := repo.FindByCode(ctx, "del0001")
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}

func testFindByOwner(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		insert(t, repo, NewLink(fmt.Sprintf("own000%d", i), "u1", time.Duration(i)*time.Minute))
	}
	insert(t, repo, NewLink("other01", "u2", 10*time.Minute))
	insert(t, repo, NewLink("gone001", "u1", 20*time.Minute))
	require.NoError(t, repo.Deactivate(ctx, "gone001"))

	links, total, err := repo.FindByOwner(ctx, "u1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, links, 2)
	assert.Equal(t, "own0004", links[0].ShortCode)
	assert.Equal(t, "own0003", links[1].ShortCode)

	links, total, err = repo.FindByOwner(ctx, "u1", 4, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, links, 1)
	assert.Equal(t, "own0000", links[0].ShortCode)

	links, total, err = repo.FindByOwner(ctx, "u1", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, links)

	links, total, err = repo.FindByOwner(ctx, "nobody", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, links)
}

func testDeactivateExpired(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	now := base.Add(24 * time.Hour)

	expired := NewLink("exp0001", "u1", 0)
	past := now.Add(-time.Minute)
	expired.ExpiresAt = &past
	insert(t, repo, expired)

	alive := NewLink("live001", "u1", time.Second)
	insert(t, repo, alive)

	forever := NewLink("ever001", "u1", 2*time.Second)
	forever.ExpiresAt = nil
	insert(t, repo, forever)

	n, err := repo.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	found, err := repo.FindActiveByCode(ctx, "exp0001")
	require.NoError(t, err)
	assert.Nil(t, found)

	_, total, err := repo.FindByOwner(ctx, "u1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	n, err = repo.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func testDump(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	insert(t, repo, NewLink("dmp0001", "u1", 0))
	insert(t, repo, NewLink("dmp0002", "", time.Second))
	require.NoError(t, repo.Deactivate(ctx, "dmp0001"))

	links, err := repo.Dump(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2)

	codes := []string{links[0].ShortCode, links[1].ShortCode}
	assert.ElementsMatch(t, []string{"dmp0001", "dmp0002"}, codes)
}
