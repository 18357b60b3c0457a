package domain

import "time"

// Link represents a shortened URL
type Link struct {
	ID          string            `json:"id"`
	OriginalURL string            `json:"original_url"`
	ShortCode   string            `json:"short_code"`
	OwnerID     string            `json:"owner_id,omitempty"` // Empty for anonymous links
	Title       string            `json:"title,omitempty"`
	UTM         map[string]string `json:"utm,omitempty"`
	IsActive    bool              `json:"is_active"`
	ExpiresAt   *time.Time        `json:"expires_at"` // nil never expires
	ClickCount  int64             `json:"click_count"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// IsExpired reports whether the link has an expiry strictly before now.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// Clone returns a deep copy so stores can hand out records without sharing maps or pointers.
func (l *Link) Clone() *Link {
	c := *l
	if l.UTM != nil {
		c.UTM = make(map[string]string, len(l.UTM))
		for k, v := range l.UTM {
			c.UTM[k] = v
		}
	}
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// CreateLinkInput carries the caller supplied fields for a new link.
// ExpiresAt is the raw timestamp as received; blank means the default TTL.
type CreateLinkInput struct {
	OwnerID     string
	OriginalURL string
	ExpiresAt   string
	Title       string
	UTM         map[string]string
}

// LinkUpdate is a partial update. Nil fields are left untouched.
// An ExpiresAt pointing to an empty string removes the expiry.
type LinkUpdate struct {
	OriginalURL *string
	Title       *string
	UTM         map[string]string
	ExpiresAt   *string
}

// LinkPatch is a validated LinkUpdate as applied by a store.
type LinkPatch struct {
	OriginalURL *string
	Title       *string
	UTM         map[string]string
	ExpiresAt   *time.Time
	ClearExpiry bool
	UpdatedAt   time.Time
}

// Apply writes the patch onto l.
func (p LinkPatch) Apply(l *Link) {
	if p.OriginalURL != nil {
		l.OriginalURL = *p.OriginalURL
	}
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.UTM != nil {
		l.UTM = make(map[string]string, len(p.UTM))
		for k, v := range p.UTM {
			l.UTM[k] = v
		}
	}
	if p.ClearExpiry {
		l.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		l.ExpiresAt = &t
	}
	if !p.UpdatedAt.IsZero() {
		l.UpdatedAt = p.UpdatedAt
	}
}

// LinkPage is one page of an owner's links.
type LinkPage struct {
	Links      []Link `json:"links"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
	TotalItems int64  `json:"total_items"`
}
