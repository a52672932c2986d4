package core

// resolver.go resolves the relational hints of a row against the reference
// catalogs. A row ends up with at most one DSP, one station and one market:
//
//   - DSP precedence: generic reference (name or code), then DSP code, then
//     DSP name. Within one kind the first matching column wins.
//   - The station comes from the explicit station column or the winning
//     DSP, whichever column is earlier in mapping order. A station with a
//     market sets the market. Each id is written once.
//   - Markets are never assigned directly.

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CatalogSource loads the reference catalogs.
type CatalogSource interface {
	ListDSPs(ctx context.Context) ([]DSP, error)
	ListStations(ctx context.Context) ([]Station, error)
	ListMarkets(ctx context.Context) ([]Market, error)
}

// Catalogs is an in-memory snapshot of DSPs, stations and markets for one
// import. Lookups are case-insensitive exact matches and return the first
// entry in catalog order.
type Catalogs struct {
	mu sync.RWMutex

	dsps       []DSP
	dspByCode  map[string]int
	dspByName  map[string]int
	stations   map[string]Station
	stationIdx map[string]string // lowercase code -> id
	markets    map[string]Market
}

// NewCatalogs indexes the given entries.
func NewCatalogs(dsps []DSP, stations []Station, markets []Market) *Catalogs {
	c := &Catalogs{
		dspByCode:  make(map[string]int),
		dspByName:  make(map[string]int),
		stations:   make(map[string]Station, len(stations)),
		stationIdx: make(map[string]string, len(stations)),
		markets:    make(map[string]Market, len(markets)),
	}
	for _, d := range dsps {
		c.addDSPLocked(d)
	}
	for _, s := range stations {
		c.stations[s.ID] = s
		if key := lookupKey(s.Code); key != "" {
			if _, seen := c.stationIdx[key]; !seen {
				c.stationIdx[key] = s.ID
			}
		}
	}
	for _, m := range markets {
		c.markets[m.ID] = m
	}
	return c
}

// LoadCatalogs fetches all three catalogs concurrently.
func LoadCatalogs(ctx context.Context, src CatalogSource) (*Catalogs, error) {
	var (
		dsps     []DSP
		stations []Station
		markets  []Market
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if dsps, err = src.ListDSPs(gctx); err != nil {
			return fmt.Errorf("list dsps: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if stations, err = src.ListStations(gctx); err != nil {
			return fmt.Errorf("list stations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if markets, err = src.ListMarkets(gctx); err != nil {
			return fmt.Errorf("list markets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewCatalogs(dsps, stations, markets), nil
}

// AddDSP appends a DSP created during the run. It is visible to later
// lookups on this snapshot only.
func (c *Catalogs) AddDSP(d DSP) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addDSPLocked(d)
}

func (c *Catalogs) addDSPLocked(d DSP) {
	idx := len(c.dsps)
	c.dsps = append(c.dsps, d)
	if key := lookupKey(d.Code); key != "" {
		if _, seen := c.dspByCode[key]; !seen {
			c.dspByCode[key] = idx
		}
	}
	if key := lookupKey(d.Name); key != "" {
		if _, seen := c.dspByName[key]; !seen {
			c.dspByName[key] = idx
		}
	}
}

// DSPs returns a copy of the DSP list.
func (c *Catalogs) DSPs() []DSP {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]DSP, len(c.dsps))
	copy(out, c.dsps)
	return out
}

// DSPByRef finds a DSP whose name or code matches ref.
func (c *Catalogs) DSPByRef(ref string) (DSP, bool) {
	key := lookupKey(ref)
	if key == "" {
		return DSP{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	nameIdx, byName := c.dspByName[key]
	codeIdx, byCode := c.dspByCode[key]
	switch {
	case byName && byCode:
		return c.dsps[min(nameIdx, codeIdx)], true
	case byName:
		return c.dsps[nameIdx], true
	case byCode:
		return c.dsps[codeIdx], true
	}
	return DSP{}, false
}

// DSPByCode finds a DSP by code only.
func (c *Catalogs) DSPByCode(code string) (DSP, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx, ok := c.dspByCode[lookupKey(code)]; ok {
		return c.dsps[idx], true
	}
	return DSP{}, false
}

// DSPByName finds a DSP by name only.
func (c *Catalogs) DSPByName(name string) (DSP, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx, ok := c.dspByName[lookupKey(name)]; ok {
		return c.dsps[idx], true
	}
	return DSP{}, false
}

// StationByCode finds a station by code.
func (c *Catalogs) StationByCode(code string) (Station, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.stationIdx[lookupKey(code)]
	if !ok {
		return Station{}, false
	}
	return c.stations[id], true
}

// Station returns a station by id.
func (c *Catalogs) Station(id string) (Station, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stations[id]
	return s, ok
}

// Market returns a market by id.
func (c *Catalogs) Market(id string) (Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.markets[id]
	return m, ok
}

func lookupKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolver applies the DSP -> station -> market cascade to a contact.
type Resolver struct {
	catalogs *Catalogs
}

// NewResolver creates a resolver over a catalog snapshot.
func NewResolver(c *Catalogs) *Resolver {
	return &Resolver{catalogs: c}
}

// RowClaims records, per hint kind, the first column of a row whose value
// matched the catalogs. Columns are numbered in mapping order.
type RowClaims struct {
	dsp     [3]claim // generic reference, code, name
	station claim
}

type claim struct {
	id      string
	station string // station of a claimed DSP
	col     int
}

func (c claim) ok() bool { return c.id != "" }

// dspWinner returns the winning DSP claim: generic reference, then code, then name.
func (rc *RowClaims) dspWinner() claim {
	for _, c := range rc.dsp {
		if c.ok() {
			return c
		}
	}
	return claim{}
}

// Claim looks up the value of column col unless an earlier column of the
// same kind already matched. Non-relational targets are ignored.
func (r *Resolver) Claim(rc *RowClaims, target TargetField, value string, col int) {
	var slot int
	var lookup func(string) (DSP, bool)
	switch target {
	case FieldDSPRef:
		slot, lookup = 0, r.catalogs.DSPByRef
	case FieldDSPCode:
		slot, lookup = 1, r.catalogs.DSPByCode
	case FieldDSPName:
		slot, lookup = 2, r.catalogs.DSPByName
	case FieldStation:
		if rc.station.ok() {
			return
		}
		if s, ok := r.catalogs.StationByCode(value); ok {
			rc.station = claim{id: s.ID, col: col}
		}
		return
	default:
		return
	}

	if rc.dsp[slot].ok() {
		return
	}
	if d, ok := lookup(value); ok {
		rc.dsp[slot] = claim{id: d.ID, station: d.StationID, col: col}
	}
}

// Apply writes the claims of a row to c. The station goes to whichever of
// the explicit station column and the winning DSP column comes first, and
// the market derives from that station.
func (r *Resolver) Apply(c *ContactInput, rc RowClaims) {
	dsp := rc.dspWinner()
	if dsp.ok() {
		c.setDSP(dsp.id)
	}

	station := rc.station
	if dsp.station != "" && (!station.ok() || dsp.col < station.col) {
		station = claim{id: dsp.station, col: dsp.col}
	}
	if station.ok() && c.setStation(station.id) {
		r.deriveMarket(c)
	}
}

func (r *Resolver) deriveMarket(c *ContactInput) {
	if s, ok := r.catalogs.Station(c.StationID); ok {
		c.setMarket(s.MarketID)
	}
}
