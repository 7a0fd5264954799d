package dashboard

import (
	"strings"
	"time"

	"github.com/coachbook/server/internal/domain/bookings"
	"github.com/coachbook/server/internal/domain/users"
)

// Buckets groups a dashboard's bookings. A booking may appear in several
// buckets; input order is kept within each bucket.
type Buckets struct {
	Upcoming    []bookings.View
	Pending     []bookings.View
	Confirmed   []bookings.View
	NeedsReport []bookings.View
	Closed      []bookings.View
}

// Partition buckets views relative to now.
func Partition(views []bookings.View, now time.Time) Buckets {
	b := Buckets{
		Upcoming:    []bookings.View{},
		Pending:     []bookings.View{},
		Confirmed:   []bookings.View{},
		NeedsReport: []bookings.View{},
		Closed:      []bookings.View{},
	}
	for _, v := range views {
		future := !v.Date.Before(now)
		switch v.Status {
		case bookings.StatusPending:
			b.Pending = append(b.Pending, v)
			if future {
				b.Upcoming = append(b.Upcoming, v)
			}
		case bookings.StatusAccepted:
			if future {
				b.Upcoming = append(b.Upcoming, v)
				b.Confirmed = append(b.Confirmed, v)
			} else {
				b.NeedsReport = append(b.NeedsReport, v)
			}
		case bookings.StatusCompleted, bookings.StatusCancelled, bookings.StatusRejected:
			b.Closed = append(b.Closed, v)
		}
	}
	return b
}

// FilterDirectory keeps entries whose name or any competency contains query,
// case-insensitively. An empty query keeps everything.
func FilterDirectory(entries []users.DirectoryEntry, query string) []users.DirectoryEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return entries
	}
	out := make([]users.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if matches(e, query) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e users.DirectoryEntry, query string) bool {
	if strings.Contains(strings.ToLower(e.User.Name), query) {
		return true
	}
	for _, c := range e.Competencies {
		if strings.Contains(strings.ToLower(c.Name), query) {
			return true
		}
	}
	return false
}
