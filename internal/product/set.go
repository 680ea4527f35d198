package product

import (
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/cpg/internal/climate"
)

// SetStatus is the rolled up send status of a product set.
type SetStatus string

const (
	SetPending    SetStatus = "PENDING"
	SetPartial    SetStatus = "PARTIAL"
	SetSent       SetStatus = "SENT"
	SetHasError   SetStatus = "HAS_ERROR"
	SetFatalError SetStatus = "FATAL_ERROR"
)

// Set groups the products bound for one channel.
type Set struct {
	Type       climate.Source      `json:"type"`
	Status     SetStatus           `json:"status"`
	StatusDesc string              `json:"status_desc,omitempty"`
	Products   map[string]*Product `json:"products"`
}

// NewSet returns an empty pending set for a channel.
func NewSet(src climate.Source) *Set {
	return &Set{Type: src, Status: SetPending, Products: make(map[string]*Product)}
}

// Add inserts or replaces a product by key.
func (s *Set) Add(p *Product) {
	if s.Products == nil {
		s.Products = make(map[string]*Product)
	}
	s.Products[p.Key] = p
}

// Len returns the number of products.
func (s *Set) Len() int { return len(s.Products) }

// Keys returns the product keys in sorted order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.Products))
	for k := range s.Products {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unsent returns the products not yet SENT, ordered by key.
func (s *Set) Unsent() []*Product {
	var out []*Product
	for _, k := range s.Keys() {
		if p := s.Products[k]; !p.IsSent() {
			out = append(out, p)
		}
	}
	return out
}

// NumUnsent returns the number of unsent products, or -1 for an empty set.
func (s *Set) NumUnsent() int {
	if s.Len() == 0 {
		return -1
	}
	return len(s.Unsent())
}

// AllSent reports whether every product in a non-empty set is SENT.
func (s *Set) AllSent() bool { return s.NumUnsent() == 0 }

// SetStatus overrides the set level status.
func (s *Set) SetStatus(st SetStatus, desc string) {
	s.Status = st
	s.StatusDesc = desc
}

// Rollup derives the set status from its products. action names the
// operation in progress and is quoted in error descriptions.
func (s *Set) Rollup(action string) SetStatus {
	if s.Len() == 0 {
		s.SetStatus(SetFatalError, fmt.Sprintf("There are no %s products", s.Type))
		return s.Status
	}
	sent := 0
	var failed *Product
	for _, k := range s.Keys() {
		p := s.Products[k]
		switch {
		case p.IsSent():
			sent++
		case p.Status == StatusError:
			failed = p
		}
	}
	switch {
	case sent == s.Len():
		s.SetStatus(SetSent, "")
	case failed != nil:
		s.SetStatus(SetHasError, fmt.Sprintf("There is error in the %s products, happened when %s with reason: %s",
			s.Type, action, failed.StatusDesc))
	case sent > 0:
		s.SetStatus(SetPartial, fmt.Sprintf("%d of %d %s products sent", sent, s.Len(), s.Type))
	default:
		s.SetStatus(SetPending, "")
	}
	return s.Status
}

// MaxExpiration returns the latest expiration among unsent products, never
// earlier than now.
func (s *Set) MaxExpiration(now time.Time) time.Time {
	max := now
	for _, p := range s.Unsent() {
		if p.ExpirationTime.After(max) {
			max = p.ExpirationTime
		}
	}
	return max
}
