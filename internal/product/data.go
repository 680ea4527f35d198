package product

import (
	"fmt"
	"time"

	"github.com/zulandar/cpg/internal/climate"
)

// ProdData holds the formatted products of a session, one set per channel.
type ProdData struct {
	Sets map[climate.Source]*Set `json:"sets"`
}

// NewProdData groups formatted products into channel sets.
func NewProdData(products map[string]*Product) (*ProdData, error) {
	pd := &ProdData{Sets: make(map[climate.Source]*Set)}
	for key, p := range products {
		if p == nil {
			return nil, fmt.Errorf("product: %s is nil", key)
		}
		if p.Key == "" {
			p.Key = key
		}
		src := p.Source()
		if src == "" {
			return nil, fmt.Errorf("product: %s has no channel for %s", key, p.PeriodType)
		}
		set, ok := pd.Sets[src]
		if !ok {
			set = NewSet(src)
			pd.Sets[src] = set
		}
		set.Add(p)
	}
	return pd, nil
}

// Empty reports whether there are no products at all.
func (d *ProdData) Empty() bool {
	if d == nil {
		return true
	}
	for _, s := range d.Sets {
		if s.Len() > 0 {
			return false
		}
	}
	return true
}

// Set returns the set for a channel, or nil.
func (d *ProdData) Set(ch climate.Source) *Set {
	if d == nil {
		return nil
	}
	return d.Sets[ch]
}

// Get finds a product by channel and key.
func (d *ProdData) Get(ch climate.Source, key string) (*Product, bool) {
	s := d.Set(ch)
	if s == nil {
		return nil, false
	}
	p, ok := s.Products[key]
	return p, ok
}

// Delete removes a product, reporting whether it existed.
func (d *ProdData) Delete(ch climate.Source, key string) bool {
	s := d.Set(ch)
	if s == nil {
		return false
	}
	if _, ok := s.Products[key]; !ok {
		return false
	}
	delete(s.Products, key)
	return true
}

// AllSent reports whether every product on every channel is SENT.
func (d *ProdData) AllSent() bool {
	if d.Empty() {
		return false
	}
	for _, s := range d.Sets {
		for _, p := range s.Products {
			if !p.IsSent() {
				return false
			}
		}
	}
	return true
}

// MaxExpiration returns the latest unsent expiration across channels.
func (d *ProdData) MaxExpiration(now time.Time) time.Time {
	max := now
	if d == nil {
		return max
	}
	for _, s := range d.Sets {
		if e := s.MaxExpiration(now); e.After(max) {
			max = e
		}
	}
	return max
}
