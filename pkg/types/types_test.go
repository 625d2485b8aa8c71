package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLootDuplicatePredicate(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	base := LootRecord{
		CapturedAt: at,
		LootData:   LootData{SubmarineName: "Voyager IV", FactionID: "maelstrom"},
	}

	tests := []struct {
		name      string
		other     LootRecord
		duplicate bool
	}{
		{
			"identical capture",
			LootRecord{CapturedAt: at, LootData: LootData{SubmarineName: "Voyager IV", FactionID: "maelstrom"}},
			true,
		},
		{
			"59 seconds later",
			LootRecord{CapturedAt: at.Add(59 * time.Second), LootData: LootData{SubmarineName: "Voyager IV", FactionID: "maelstrom"}},
			true,
		},
		{
			"59 seconds earlier",
			LootRecord{CapturedAt: at.Add(-59 * time.Second), LootData: LootData{SubmarineName: "Voyager IV", FactionID: "maelstrom"}},
			true,
		},
		{
			"exactly one minute",
			LootRecord{CapturedAt: at.Add(time.Minute), LootData: LootData{SubmarineName: "Voyager IV", FactionID: "maelstrom"}},
			false,
		},
		{
			"different submarine",
			LootRecord{CapturedAt: at, LootData: LootData{SubmarineName: "Voyager V", FactionID: "maelstrom"}},
			false,
		},
		{
			"different faction",
			LootRecord{CapturedAt: at, LootData: LootData{SubmarineName: "Voyager IV", FactionID: "adders"}},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.duplicate, base.IsDuplicateOf(&tt.other))
			assert.Equal(t, tt.duplicate, tt.other.IsDuplicateOf(&base), "predicate must be symmetric")
		})
	}
}

func TestComputeTotalValue(t *testing.T) {
	d := LootData{
		Items: []LootItem{
			{ItemID: 1, Name: "salvaged plating", Quantity: 3, Value: 500},
			{ItemID: 2, Name: "intact hull", Quantity: 1, Value: 12000},
			{ItemID: 3, Name: "scrap", Quantity: 40, Value: 25},
		},
	}
	assert.Equal(t, int64(3*500+12000+40*25), d.ComputeTotalValue())

	empty := LootData{}
	assert.Equal(t, int64(0), empty.ComputeTotalValue())
}
