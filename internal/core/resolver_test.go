package core

import (
	"context"
	"errors"
	"testing"
)

func TestResolver_DSPPrecedence(t *testing.T) {
	tr := NewTransformer(testCatalogs())

	// Each column matches a different DSP. The generic reference must win
	// whatever the column order.
	raw := row("Ref", "Storm Freight", "Code", "DSP003", "Name", "Lightning Logistics")

	orders := []Mappings{
		mappings("Ref", "dsp_id", "Code", "dsp_code", "Name", "dsp_name"),
		mappings("Code", "dsp_code", "Name", "dsp_name", "Ref", "dsp_id"),
		mappings("Name", "dsp_name", "Ref", "dsp_id", "Code", "dsp_code"),
	}
	for i, m := range orders {
		out := tr.Transform(1, raw, m)
		if out.Contact.DSPID != "d-storm" {
			t.Errorf("order %d: DSPID = %q, want d-storm", i, out.Contact.DSPID)
		}
	}

	// Without a generic match, code beats name.
	out := tr.Transform(1, row("Ref", "Unknown Co", "Name", "Lightning Logistics", "Code", "DSP003"),
		mappings("Ref", "dsp_id", "Name", "dsp_name", "Code", "dsp_code"))
	if out.Contact.DSPID != "d-none" {
		t.Errorf("DSPID = %q, want d-none from code", out.Contact.DSPID)
	}
}

func TestResolver_GenericRefMatchesNameOrCode(t *testing.T) {
	tr := NewTransformer(testCatalogs())
	m := mappings("DSP", "dsp_id")

	tests := []struct {
		value string
		want  string
	}{
		{"lightning logistics", "d-light"},
		{"dsp002", "d-storm"},
		{"  DSP003 ", "d-none"},
		{"Nobody", ""},
	}
	for _, tt := range tests {
		out := tr.Transform(1, row("DSP", tt.value), m)
		if out.Contact.DSPID != tt.want {
			t.Errorf("DSP %q: DSPID = %q, want %q", tt.value, out.Contact.DSPID, tt.want)
		}
		if out.Hints.DSPRef == "" {
			t.Errorf("DSP %q: DSPRef not recorded", tt.value)
		}
	}
}

func TestResolver_Cascade(t *testing.T) {
	tr := NewTransformer(testCatalogs())

	tests := []struct {
		name        string
		raw         RawRow
		m           Mappings
		wantDSP     string
		wantStation string
		wantMarket  string
	}{
		{
			name:        "dsp sets station and market",
			raw:         row("Name", "Storm Freight"),
			m:           mappings("Name", "dsp_name"),
			wantDSP:     "d-storm",
			wantStation: "st-lax",
			wantMarket:  "m-west",
		},
		{
			name:        "explicit station before dsp wins",
			raw:         row("Station", "BOS2", "Name", "Storm Freight"),
			m:           mappings("Station", "station_id", "Name", "dsp_name"),
			wantDSP:     "d-storm",
			wantStation: "st-bos",
			wantMarket:  "m-east",
		},
		{
			name:        "dsp before explicit station wins",
			raw:         row("Name", "Storm Freight", "Station", "BOS2"),
			m:           mappings("Name", "dsp_name", "Station", "station_id"),
			wantDSP:     "d-storm",
			wantStation: "st-lax",
			wantMarket:  "m-west",
		},
		{
			name:        "dsp without station leaves explicit station",
			raw:         row("Code", "DSP003", "Station", "dca1"),
			m:           mappings("Code", "dsp_code", "Station", "station_id"),
			wantDSP:     "d-none",
			wantStation: "st-dca",
			wantMarket:  "m-east",
		},
		{
			name:        "unmatched dsp column does not outrank an earlier station",
			raw:         row("Name", "Thunder Express", "Station", "BOS2", "Ref", "Storm Freight"),
			m:           mappings("Name", "dsp_name", "Station", "station_id", "Ref", "dsp_id"),
			wantDSP:     "d-storm",
			wantStation: "st-bos",
			wantMarket:  "m-east",
		},
		{
			name:        "winning dsp column before station",
			raw:         row("Ref", "Storm Freight", "Station", "BOS2"),
			m:           mappings("Ref", "dsp_id", "Station", "station_id"),
			wantDSP:     "d-storm",
			wantStation: "st-lax",
			wantMarket:  "m-west",
		},
		{
			name:        "first matching station column wins",
			raw:         row("Site A", "BOS2", "Site B", "LAX3"),
			m:           mappings("Site A", "station_id", "Site B", "station_id"),
			wantStation: "st-bos",
			wantMarket:  "m-east",
		},
		{
			name:        "first matching dsp code column wins",
			raw:         row("Code A", "DSP001", "Code B", "ZZZ"),
			m:           mappings("Code A", "dsp_code", "Code B", "dsp_code"),
			wantDSP:     "d-light",
			wantStation: "st-dca",
			wantMarket:  "m-east",
		},
		{
			name:        "later code column matches after an earlier miss",
			raw:         row("Code A", "ZZZ", "Code B", "DSP002"),
			m:           mappings("Code A", "dsp_code", "Code B", "dsp_code"),
			wantDSP:     "d-storm",
			wantStation: "st-lax",
			wantMarket:  "m-west",
		},
		{
			name:        "unmatched dsp with explicit station",
			raw:         row("Name", "Thunder Express", "Station", "LAX3"),
			m:           mappings("Name", "dsp_name", "Station", "station_id"),
			wantStation: "st-lax",
			wantMarket:  "m-west",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tr.Transform(1, tt.raw, tt.m).Contact
			if c.DSPID != tt.wantDSP || c.StationID != tt.wantStation || c.MarketID != tt.wantMarket {
				t.Errorf("got dsp=%q station=%q market=%q, want dsp=%q station=%q market=%q",
					c.DSPID, c.StationID, c.MarketID, tt.wantDSP, tt.wantStation, tt.wantMarket)
			}
		})
	}
}

func TestResolver_DuplicateColumnKeepsLastRawHint(t *testing.T) {
	tr := NewTransformer(testCatalogs())
	out := tr.Transform(1, row("Code A", "DSP001", "Code B", "ZZZ"), mappings("Code A", "dsp_code", "Code B", "dsp_code"))

	if out.Contact.DSPID != "d-light" {
		t.Errorf("DSPID = %q, want d-light", out.Contact.DSPID)
	}
	if out.Hints.DSPCode != "ZZZ" {
		t.Errorf("Hints.DSPCode = %q, want ZZZ", out.Hints.DSPCode)
	}
}

func TestResolver_UnmatchedHintsRecorded(t *testing.T) {
	tr := NewTransformer(testCatalogs())
	out := tr.Transform(1, row("Code", "NEW1", "Name", "Thunder Express"), mappings("Code", "dsp_code", "Name", "dsp_name"))

	if out.Contact.DSPID != "" {
		t.Errorf("DSPID = %q, want empty", out.Contact.DSPID)
	}
	if out.Hints.DSPCode != "NEW1" || out.Hints.DSPName != "Thunder Express" {
		t.Errorf("Hints = %+v, want code and name recorded", out.Hints)
	}
}

func TestCatalogs_AddDSP(t *testing.T) {
	c := testCatalogs()
	if _, ok := c.DSPByName("Thunder Express"); ok {
		t.Fatal("Thunder Express should not exist yet")
	}

	c.AddDSP(DSP{ID: "d-new", Code: "", Name: "Thunder Express"})

	d, ok := c.DSPByRef("thunder express")
	if !ok || d.ID != "d-new" {
		t.Errorf("DSPByRef() = %+v, %v, want d-new", d, ok)
	}
	if _, ok := c.DSPByCode(""); ok {
		t.Error("empty code should never match")
	}
	if got := len(c.DSPs()); got != 4 {
		t.Errorf("len(DSPs()) = %d, want 4", got)
	}
}

func TestCatalogs_FirstEntryWins(t *testing.T) {
	c := NewCatalogs([]DSP{
		{ID: "first", Code: "X1", Name: "Alpha"},
		{ID: "second", Code: "Alpha", Name: "Beta"},
	}, nil, nil)

	d, ok := c.DSPByRef("alpha")
	if !ok || d.ID != "first" {
		t.Errorf("DSPByRef(alpha) = %q, want first in catalog order", d.ID)
	}
}

func TestLoadCatalogs(t *testing.T) {
	store := newFakeStore()
	store.dsps = testDSPs()
	store.stations = testStations()
	store.markets = testMarkets()

	c, err := LoadCatalogs(context.Background(), store)
	if err != nil {
		t.Fatalf("LoadCatalogs() error = %v", err)
	}
	if s, ok := c.StationByCode("lax3"); !ok || s.ID != "st-lax" {
		t.Errorf("StationByCode(lax3) = %+v, %v", s, ok)
	}
	if m, ok := c.Market("m-east"); !ok || m.Name != "East" {
		t.Errorf("Market(m-east) = %+v, %v", m, ok)
	}

	store.catalogErr = errBoom
	if _, err := LoadCatalogs(context.Background(), store); !errors.Is(err, errBoom) {
		t.Errorf("LoadCatalogs() error = %v, want wrapped errBoom", err)
	}
}
