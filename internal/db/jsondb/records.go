package jsondb

import (
	"time"

	"github.com/patric-chuzhbe/contentapi/internal/models"
)

func (r *UserRecord) toModel() *models.User {
	return &models.User{
		ID:             r.ID,
		Email:          r.Email,
		HashedPassword: r.HashedPassword,
		CreatedAt:      time.Unix(0, r.CreatedAt).UTC(),
	}
}

func newContentRecord(c *models.Content) *ContentRecord {
	rec := &ContentRecord{
		ID:        c.ID,
		Text:      c.Text,
		OwnerID:   c.OwnerID,
		CreatedAt: c.CreatedAt.UnixNano(),
	}
	if c.Summary != nil {
		summary := *c.Summary
		rec.Summary = &summary
	}
	if c.Sentiment != nil {
		sentiment := *c.Sentiment
		rec.Sentiment = &sentiment
	}

	return rec
}

// toModel returns a copy so callers never alias the cache.
func (r *ContentRecord) toModel() *models.Content {
	c := &models.Content{
		ID:        r.ID,
		Text:      r.Text,
		OwnerID:   r.OwnerID,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.Summary != nil {
		summary := *r.Summary
		c.Summary = &summary
	}
	if r.Sentiment != nil {
		sentiment := *r.Sentiment
		c.Sentiment = &sentiment
	}

	return c
}

func (r *ContentRecord) cursor() models.ContentCursor {
	return models.ContentCursor{CreatedAt: time.Unix(0, r.CreatedAt).UTC(), ID: r.ID}
}
