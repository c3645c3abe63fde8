package escalation

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/and161185/kira-watch/internal/errs"
)

// Zones resolves IANA zone names and caches the result.
type Zones struct {
	def   *time.Location
	cache sync.Map // name -> *time.Location
}

// NewZones returns a resolver that maps the empty name to def.
func NewZones(def *time.Location) *Zones {
	if def == nil {
		def = time.UTC
	}
	return &Zones{def: def}
}

// Default returns the fallback zone.
func (z *Zones) Default() *time.Location { return z.def }

// Resolve returns the location for name. Unknown names wrap errs.ErrInvalidSettings.
func (z *Zones) Resolve(name string) (*time.Location, error) {
	if name == "" {
		return z.def, nil
	}
	if v, ok := z.cache.Load(name); ok {
		return v.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("zone %q: %w", name, errs.ErrInvalidSettings)
	}
	z.cache.Store(name, loc)
	return loc, nil
}
