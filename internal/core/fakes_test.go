package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/contactimport/internal/tabular"
)

// fakeStore is an in-memory Store and Refresher.
type fakeStore struct {
	mu sync.Mutex

	dsps     []DSP
	stations []Station
	markets  []Market
	contacts []Contact

	searchErr    error
	dspErr       error
	contactErrs  map[string]error // keyed by email
	catalogErr   error
	contactDelay time.Duration

	searchCalls  []string
	dspCalls     []NewDSP
	contactCalls []ContactInput

	refreshedContacts int
	refreshedDSPs     int

	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{contactErrs: make(map[string]error)}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) SearchContactsByEmail(_ context.Context, email string, limit int) ([]Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, email)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []Contact
	for _, c := range f.contacts {
		if strings.EqualFold(c.Email, email) {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CreateDSP(_ context.Context, in NewDSP) (DSP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dspCalls = append(f.dspCalls, in)
	if f.dspErr != nil {
		return DSP{}, f.dspErr
	}
	d := DSP{ID: f.id("dsp"), StationID: in.StationID, Code: in.Code, Name: in.Name, IsActive: in.IsActive}
	f.dsps = append(f.dsps, d)
	return d, nil
}

func (f *fakeStore) CreateContact(_ context.Context, in ContactInput) (Contact, error) {
	if f.contactDelay > 0 {
		time.Sleep(f.contactDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactCalls = append(f.contactCalls, in)
	if err, ok := f.contactErrs[in.Email]; ok {
		return Contact{}, err
	}
	c := Contact{ID: f.id("contact"), ContactInput: in, CreatedAt: time.Now()}
	f.contacts = append(f.contacts, c)
	return c, nil
}

func (f *fakeStore) ListDSPs(context.Context) ([]DSP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return append([]DSP(nil), f.dsps...), nil
}

func (f *fakeStore) ListStations(context.Context) ([]Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Station(nil), f.stations...), nil
}

func (f *fakeStore) ListMarkets(context.Context) ([]Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Market(nil), f.markets...), nil
}

func (f *fakeStore) ListContacts(context.Context) ([]Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Contact(nil), f.contacts...), nil
}

func (f *fakeStore) RefreshContacts(context.Context) {
	f.mu.Lock()
	f.refreshedContacts++
	f.mu.Unlock()
}

func (f *fakeStore) RefreshDSPs(context.Context) {
	f.mu.Lock()
	f.refreshedDSPs++
	f.mu.Unlock()
}

var errBoom = errors.New("boom")

// testCatalogs is a small directory:
//
//	market m-east, m-west
//	station st-dca (DCA1, east), st-lax (LAX3, west), st-bos (BOS2, east)
//	dsp d-light  Lightning Logistics / DSP001 at st-dca
//	dsp d-storm  Storm Freight       / DSP002 at st-lax
//	dsp d-none   No Station Co       / DSP003 without station
func testCatalogs() *Catalogs {
	return NewCatalogs(testDSPs(), testStations(), testMarkets())
}

func testDSPs() []DSP {
	return []DSP{
		{ID: "d-light", StationID: "st-dca", Code: "DSP001", Name: "Lightning Logistics", IsActive: true},
		{ID: "d-storm", StationID: "st-lax", Code: "DSP002", Name: "Storm Freight", IsActive: true},
		{ID: "d-none", Code: "DSP003", Name: "No Station Co", IsActive: true},
	}
}

func testStations() []Station {
	return []Station{
		{ID: "st-dca", MarketID: "m-east", Code: "DCA1", City: "Washington", State: "DC"},
		{ID: "st-lax", MarketID: "m-west", Code: "LAX3", City: "Los Angeles", State: "CA"},
		{ID: "st-bos", MarketID: "m-east", Code: "BOS2", City: "Boston", State: "MA"},
	}
}

func testMarkets() []Market {
	return []Market{{ID: "m-east", Name: "East"}, {ID: "m-west", Name: "West"}}
}

// row builds a raw row of text cells; empty values are left out.
func row(kv ...string) RawRow {
	r := make(RawRow)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			r[kv[i]] = tabular.Text(kv[i+1])
		}
	}
	return r
}

// mappings builds a mapping list from column/target pairs.
func mappings(kv ...string) Mappings {
	var m Mappings
	for i := 0; i+1 < len(kv); i += 2 {
		m = append(m, FieldMapping{SourceColumn: kv[i], Target: TargetField(kv[i+1])})
	}
	return m
}
