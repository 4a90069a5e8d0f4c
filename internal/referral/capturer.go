// Package referral attributes a browsing session to the user who shared the
// link it started from.
package referral

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fjod/go_market/internal/localstore"
	"github.com/fjod/go_market/internal/logger"
)

// Query parameters checked in order.
var referralParams = []string{"ref", "referrer"}

// SessionStore persists one referrer per session id.
type SessionStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	PutIfAbsent(ctx context.Context, bucket, key string, value []byte) ([]byte, bool, error)
	Delete(ctx context.Context, bucket, key string) error
}

// Target is the live session being attributed.
type Target interface {
	ReferrerID() *string
	SetReferrerOnce(referrerID string) bool
}

type Capturer struct {
	store SessionStore
	log   *logger.Logger
}

func NewCapturer(store SessionStore, log *logger.Logger) *Capturer {
	return &Capturer{
		store: store,
		log:   log.With("component", "referral"),
	}
}

// Capture runs on every session start or page load. A referral parameter in
// entryURL is taken only if the session has none yet; otherwise the value
// persisted for sessionID is restored. The referrer is never replaced once
// set. It returns the session's referrer, nil when there is none.
func (c *Capturer) Capture(ctx context.Context, sessionID string, target Target, entryURL string) (*string, error) {
	if current := target.ReferrerID(); current != nil {
		return current, nil
	}

	if ref := ParseReferrer(entryURL); ref != "" {
		stored, created, err := c.store.PutIfAbsent(ctx, localstore.BucketReferrals, sessionID, []byte(ref))
		if err != nil {
			// still attribute this page's session in memory
			target.SetReferrerOnce(ref)
			return target.ReferrerID(), fmt.Errorf("persist referrer: %w", err)
		}
		if created {
			c.log.Info("referral captured", "session_id", sessionID, "referrer_id", ref)
		}
		target.SetReferrerOnce(string(stored))
		return target.ReferrerID(), nil
	}

	stored, err := c.store.Get(ctx, localstore.BucketReferrals, sessionID)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load referrer: %w", err)
	}
	target.SetReferrerOnce(string(stored))
	return target.ReferrerID(), nil
}

// Forget drops the referrer persisted for sessionID, so a later session
// reusing the id starts unattributed.
func (c *Capturer) Forget(ctx context.Context, sessionID string) error {
	err := c.store.Delete(ctx, localstore.BucketReferrals, sessionID)
	if err != nil && !errors.Is(err, localstore.ErrNotFound) {
		return fmt.Errorf("forget referrer: %w", err)
	}
	return nil
}

// ParseReferrer extracts the referral parameter from a URL, or "" when the
// URL has none or cannot be parsed.
func ParseReferrer(entryURL string) string {
	if entryURL == "" {
		return ""
	}
	u, err := url.Parse(entryURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, name := range referralParams {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			return v
		}
	}
	return ""
}
