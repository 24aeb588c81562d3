package jobs

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"companylens/internal/pages"
)

// PageSource is the part of the page registry the refresher needs.
type PageSource interface {
	Fetched() []*pages.Page
	Refresh(ctx context.Context, id uuid.UUID) (bool, error)
}

// PageRefresher periodically re-fetches pages opened from a URL so that
// client-side changes to a posting reach the resolver.
type PageRefresher struct {
	pages    PageSource
	interval time.Duration
	pause    time.Duration
}

// NewPageRefresher creates a new page refresher.
func NewPageRefresher(source PageSource, interval time.Duration) *PageRefresher {
	return &PageRefresher{
		pages:    source,
		interval: interval,
		pause:    time.Second,
	}
}

// Start begins the background refresh loop.
func (r *PageRefresher) Start(ctx context.Context) {
	log.Printf("Page refresher started (interval: %v)", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Page refresher stopped")
			return
		case <-ticker.C:
			r.RefreshAll(ctx)
		}
	}
}

// RefreshAll refreshes every fetched page once and returns how many changed.
func (r *PageRefresher) RefreshAll(ctx context.Context) int {
	list := r.pages.Fetched()
	if len(list) == 0 {
		return 0
	}

	changed := 0
	for i, p := range list {
		// Check context before each page
		select {
		case <-ctx.Done():
			return changed
		default:
		}

		ok, err := r.pages.Refresh(ctx, p.ID)
		if err != nil {
			log.Printf("Page refresher: failed to refresh %s (%s): %v", p.ID, p.URL, err)
		} else if ok {
			changed++
		}

		// Delay between fetches to avoid hammering job boards
		if r.pause > 0 && i < len(list)-1 {
			select {
			case <-ctx.Done():
				return changed
			case <-time.After(r.pause):
			}
		}
	}

	if changed > 0 {
		log.Printf("Page refresher: %d of %d pages changed", changed, len(list))
	}
	return changed
}
