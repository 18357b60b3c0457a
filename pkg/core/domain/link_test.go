package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

func TestLink_IsExpired(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{name: "no expiry", expiresAt: nil, want: false},
		{name: "expiry in the future", expiresAt: &future, want: false},
		{name: "expiry exactly now", expiresAt: &now, want: false},
		{name: "expiry in the past", expiresAt: &past, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := &domain.Link{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, link.IsExpired(now))
		})
	}
}

func TestLink_CloneIsIndependent(t *testing.T) {
	exp := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	original := &domain.Link{
		ShortCode:  "abc1234",
		UTM:        map[string]string{"utm_source": "mail"},
		ExpiresAt:  &exp,
		ClickCount: 3,
	}

	clone := original.Clone()
	clone.UTM["utm_source"] = "web"
	*clone.ExpiresAt = exp.Add(time.Hour)
	clone.ClickCount = 10

	assert.Equal(t, "mail", original.UTM["utm_source"])
	assert.Equal(t, exp, *original.ExpiresAt)
	assert.Equal(t, int64(3), original.ClickCount)
}

func TestLinkPatch_Apply(t *testing.T) {
	exp := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	title := "new title"

	link := &domain.Link{
		OriginalURL: "https://example.com/a",
		Title:       "old",
		UTM:         map[string]string{"utm_source": "mail"},
		ExpiresAt:   &exp,
	}

	domain.LinkPatch{Title: &title, UpdatedAt: updated}.Apply(link)
	assert.Equal(t, "https://example.com/a", link.OriginalURL)
	assert.Equal(t, "new title", link.Title)
	assert.Equal(t, "mail", link.UTM["utm_source"])
	assert.Equal(t, exp, *link.ExpiresAt)
	assert.Equal(t, updated, link.UpdatedAt)

	domain.LinkPatch{ClearExpiry: true, UTM: map[string]string{}}.Apply(link)
	assert.Nil(t, link.ExpiresAt)
	assert.Empty(t, link.UTM)
}
