package backup

import (
	"fmt"
	"os"
	"strconv"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// RetentionPolicy decides which backups to keep. Input is newest first.
type RetentionPolicy interface {
	Apply(backups []Entry) (keep []Entry)
}

// CountPolicy keeps the MaxCount most recent backups.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount backups.
func (p *CountPolicy) Apply(backups []Entry) []Entry {
	if len(backups) <= p.MaxCount {
		return backups
	}
	return backups[:p.MaxCount]
}

// AgePolicy keeps backups younger than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
	Now    func() time.Time
}

// Apply keeps backups created after now-MaxAge.
func (p *AgePolicy) Apply(backups []Entry) []Entry {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Entry
	for _, b := range backups {
		if b.CreatedAt.After(cutoff) {
			keep = append(keep, b)
		}
	}
	return keep
}

// CompositePolicy keeps a backup if any sub-policy keeps it.
type CompositePolicy struct {
	Policies []RetentionPolicy
}

// Apply returns the union of the sub-policies, in input order.
func (p *CompositePolicy) Apply(backups []Entry) []Entry {
	kept := mapset.NewThreadUnsafeSet[string]()
	for _, policy := range p.Policies {
		for _, b := range policy.Apply(backups) {
			kept.Add(b.Path)
		}
	}
	var out []Entry
	for _, b := range backups {
		if kept.Contains(b.Path) {
			out = append(out, b)
		}
	}
	return out
}

// NewPolicy builds the configured policy: a count limit, an age limit, or
// the union of both. It returns nil when neither is set.
func NewPolicy(maxCount int, maxAge time.Duration) RetentionPolicy {
	var ps []RetentionPolicy
	if maxCount > 0 {
		ps = append(ps, &CountPolicy{MaxCount: maxCount})
	}
	if maxAge > 0 {
		ps = append(ps, &AgePolicy{MaxAge: maxAge})
	}
	switch len(ps) {
	case 0:
		return nil
	case 1:
		return ps[0]
	}
	return &CompositePolicy{Policies: ps}
}

// ApplyRetention deletes the backups in dir that policy does not keep.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	backups, err := List(dir)
	if err != nil {
		return nil, err
	}

	keep := mapset.NewThreadUnsafeSet[string]()
	for _, b := range policy.Apply(backups) {
		keep.Add(b.Path)
	}
	for _, b := range backups {
		if keep.Contains(b.Path) {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("backup: remove %s: %w", b.Name, err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseDuration accepts Go durations plus day and week suffixes ("30d", "2w").
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown duration suffix in %q", s)
}
