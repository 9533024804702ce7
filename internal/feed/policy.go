package feed

import (
	"sort"
)

// Status describes where a record sits relative to its publication window.
type Status int

const (
	StatusActive Status = iota
	StatusScheduled
	StatusExpired
	// StatusInactive marks records a policy cannot place in time, such as
	// undated material.
	StatusInactive
	StatusHidden
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusScheduled:
		return "scheduled"
	case StatusExpired:
		return "expired"
	case StatusInactive:
		return "inactive"
	case StatusHidden:
		return "hidden"
	}
	return "unknown"
}

// Policy decides which records are visible on a given day and how they are
// ordered. The zero Policy behaves like NoticePolicy without expiry.
type Policy struct {
	Name string
	// RequirePublish excludes records without a publish date.
	RequirePublish bool
	// UseExpiry honours the expire date as an upper bound.
	UseExpiry bool
}

var (
	// NoticePolicy shows records inside their [publish, expire] window;
	// missing bounds are open.
	NoticePolicy = Policy{Name: "notice", UseExpiry: true}
	// MaterialPolicy shows records whose publish date has been reached.
	MaterialPolicy = Policy{Name: "material", RequirePublish: true}
)

// Status classifies r on today.
func (p Policy) Status(r Record, today Day) Status {
	if r.Hidden {
		return StatusHidden
	}
	if r.PublishDate.IsZero() {
		if p.RequirePublish {
			return StatusInactive
		}
	} else if today.Before(r.PublishDate) {
		return StatusScheduled
	}
	if p.UseExpiry && !r.ExpireDate.IsZero() && today.After(r.ExpireDate) {
		return StatusExpired
	}
	return StatusActive
}

// Active reports whether r is inside its window on today, ignoring the hidden flag.
func (p Policy) Active(r Record, today Day) bool {
	r.Hidden = false
	return p.Status(r, today) == StatusActive
}

// Visible reports whether r passes the policy on today.
func (p Policy) Visible(r Record, today Day) bool {
	return p.Status(r, today) == StatusActive
}

// Eligible returns the visible records in their original order.
func (p Policy) Eligible(records []Record, today Day) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if p.Visible(r, today) {
			out = append(out, r)
		}
	}
	return out
}

// List returns the eligible records in display order.
func (p Policy) List(records []Record, today Day) []Record {
	out := p.Eligible(records, today)
	p.Sort(out, today)
	return out
}

// Archive returns every non-hidden record in display order, including
// scheduled and expired ones.
func (p Policy) Archive(records []Record, today Day) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !r.Hidden {
			out = append(out, r)
		}
	}
	p.Sort(out, today)
	return out
}

// group ranks records: pinned+active, pinned+expired, unpinned+active, rest.
func (p Policy) group(r Record, today Day) int {
	status := p.Status(r, today)
	switch {
	case r.Pinned && status == StatusActive:
		return 0
	case r.Pinned && status == StatusExpired:
		return 1
	case !r.Pinned && status == StatusActive:
		return 2
	}
	return 3
}

// Less orders a before b: by group, then newer publish date, then higher row
// index. Records without a publish date sort after dated ones in a group.
func (p Policy) Less(a, b Record, today Day) bool {
	ga, gb := p.group(a, today), p.group(b, today)
	if ga != gb {
		return ga < gb
	}
	if c := a.PublishDate.Compare(b.PublishDate); c != 0 {
		return c > 0
	}
	return a.RowIndex > b.RowIndex
}

// Sort orders records in place.
func (p Policy) Sort(records []Record, today Day) {
	sort.SliceStable(records, func(i, j int) bool {
		return p.Less(records[i], records[j], today)
	})
}

// Featured picks the single record for a "latest" slot:
//  1. the newest pinned candidate,
//  2. else the most recently started active record,
//  3. else the most recently expired record.
//
// Hidden and scheduled records are never candidates. Ties on date go to the
// higher row index.
func (p Policy) Featured(records []Record, today Day) (Record, bool) {
	var pinned, active, expired Record
	var hasPinned, hasActive, hasExpired bool
	for _, r := range records {
		status := p.Status(r, today)
		if status != StatusActive && status != StatusExpired {
			continue
		}
		if r.Pinned && (!hasPinned || newerStart(r, pinned)) {
			pinned, hasPinned = r, true
		}
		switch status {
		case StatusActive:
			if !hasActive || newerStart(r, active) {
				active, hasActive = r, true
			}
		case StatusExpired:
			if !hasExpired || newerEnd(r, expired) {
				expired, hasExpired = r, true
			}
		}
	}
	switch {
	case hasPinned:
		return pinned, true
	case hasActive:
		return active, true
	case hasExpired:
		return expired, true
	}
	return Record{}, false
}

func newerStart(a, b Record) bool {
	if c := a.PublishDate.Compare(b.PublishDate); c != 0 {
		return c > 0
	}
	return a.RowIndex > b.RowIndex
}

func newerEnd(a, b Record) bool {
	if c := a.ExpireDate.Compare(b.ExpireDate); c != 0 {
		return c > 0
	}
	return newerStart(a, b)
}
