package scheduling

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func newTestPicker(t *testing.T, now time.Time, seed int64) *Picker {
	t.Helper()
	return NewPicker(now, rand.New(rand.NewSource(seed)))
}

func TestPickerOffersFiveBusinessDays(t *testing.T) {
	// Anchor on different weekdays to cross weekends in all positions.
	anchors := []time.Time{
		time.Date(2024, 12, 9, 10, 0, 0, 0, time.UTC),  // Monday
		time.Date(2024, 12, 11, 10, 0, 0, 0, time.UTC), // Wednesday
		time.Date(2024, 12, 13, 10, 0, 0, 0, time.UTC), // Friday
		time.Date(2024, 12, 14, 10, 0, 0, 0, time.UTC), // Saturday
		time.Date(2024, 12, 15, 10, 0, 0, 0, time.UTC), // Sunday
	}
	for _, anchor := range anchors {
		p := newTestPicker(t, anchor, 1)
		days := p.Days()
		if len(days) != 5 {
			t.Fatalf("anchor %s: expected 5 days, got %d", anchor.Weekday(), len(days))
		}
		for _, d := range days {
			parsed, err := time.Parse("2006-01-02", d.ISO)
			if err != nil {
				t.Fatalf("bad ISO date %q: %v", d.ISO, err)
			}
			if wd := parsed.Weekday(); wd == time.Saturday || wd == time.Sunday {
				t.Errorf("anchor %s: offered a weekend day %s", anchor.Weekday(), d.ISO)
			}
			if !parsed.After(anchor.Truncate(24 * time.Hour)) {
				t.Errorf("offered day %s is not after the anchor", d.ISO)
			}
		}
	}
}

func TestPickerDaysAreStable(t *testing.T) {
	p := newTestPicker(t, time.Date(2024, 12, 9, 10, 0, 0, 0, time.UTC), 7)
	first := p.Days()
	second := p.Days()
	if len(first) != len(second) {
		t.Fatal("day list changed between calls")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("day %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestPickerFrenchDayLabels(t *testing.T) {
	// Wednesday 2024-12-11 anchor: first business day is jeudi 12 décembre.
	p := newTestPicker(t, time.Date(2024, 12, 11, 10, 0, 0, 0, time.UTC), 1)
	days := p.Days()
	if days[0].Label != "jeudi 12 décembre" {
		t.Errorf("expected 'jeudi 12 décembre', got %q", days[0].Label)
	}
	if days[1].Label != "vendredi 13 décembre" {
		t.Errorf("expected 'vendredi 13 décembre', got %q", days[1].Label)
	}
	// Weekend skipped; third offered day is Monday the 16th.
	if days[2].Label != "lundi 16 décembre" {
		t.Errorf("expected 'lundi 16 décembre', got %q", days[2].Label)
	}
}

func TestPickerGridHasThirteenSlots(t *testing.T) {
	p := newTestPicker(t, time.Date(2024, 12, 9, 10, 0, 0, 0, time.UTC), 1)
	times := p.Times()
	if len(times) != 13 {
		t.Fatalf("expected 13 time options, got %d", len(times))
	}
	for _, opt := range times {
		if opt.Time >= "12:00" && opt.Time < "14:00" {
			t.Errorf("grid includes lunch-hour slot %s", opt.Time)
		}
	}
}

func TestPickerBookedSetSharedAcrossDays(t *testing.T) {
	p := newTestPicker(t, time.Date(2024, 12, 9, 10, 0, 0, 0, time.UTC), 3)
	days := p.Days()

	var bookedFirst []string
	for _, opt := range p.Times() {
		if !opt.Available {
			bookedFirst = append(bookedFirst, opt.Time)
		}
	}

	// Changing the day does not change availability.
	for _, d := range days {
		if !p.SelectDay(d.ISO) {
			t.Fatalf("day %s not selectable", d.ISO)
		}
		var booked []string
		for _, opt := range p.Times() {
			if !opt.Available {
				booked = append(booked, opt.Time)
			}
		}
		if len(booked) != len(bookedFirst) {
			t.Fatalf("booked set changed for day %s", d.ISO)
		}
		for i := range booked {
			if booked[i] != bookedFirst[i] {
				t.Fatalf("booked set changed for day %s", d.ISO)
			}
		}
	}
}

func TestSelectTimeRejectsBooked(t *testing.T) {
	// Find a seed producing at least one booked and one free slot.
	var p *Picker
	for seed := int64(0); seed < 50; seed++ {
		candidate := newTestPicker(t, time.Date(2024, 12, 9, 10, 0, 0, 0, time.UTC), seed)
		var hasBooked, hasFree bool
		for _, opt := range candidate.Times() {
			if opt.Available {
				hasFree = true
			} else {
				hasBooked = true
			}
		}
		if hasBooked && hasFree {
			p = candidate
			break
		}
	}
	if p == nil {
		t.Fatal("no seed produced a mixed booked/free grid")
	}

	p.SelectDay(p.Days()[0].ISO)
	for _, opt := range p.Times() {
		got := p.SelectTime(opt.Time)
		if got != opt.Available {
			t.Errorf("SelectTime(%s) = %v, want %v", opt.Time, got, opt.Available)
		}
	}
}

func TestSelectDayResetsTime(t *testing.T) {
	p := newTestPicker(t, time.Date(2024, 12, 9, 10, 0, 0, 0, time.UTC), 1)
	days := p.Days()

	var free string
	for _, opt := range p.Times() {
		if opt.Available {
			free = opt.Time
			break
		}
	}
	if free == "" {
		t.Skip("seed booked the whole grid")
	}

	p.SelectDay(days[0].ISO)
	if !p.SelectTime(free) {
		t.Fatalf("SelectTime(%s) should succeed", free)
	}
	p.SelectDay(days[1].ISO)
	if _, err := p.Confirm(); !errors.Is(err, ErrIncompleteSelection) {
		t.Fatalf("expected ErrIncompleteSelection after day change, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	p := newTestPicker(t, time.Date(2024, 12, 11, 10, 0, 0, 0, time.UTC), 1)

	if _, err := p.Confirm(); !errors.Is(err, ErrIncompleteSelection) {
		t.Fatalf("expected ErrIncompleteSelection with nothing selected, got %v", err)
	}

	days := p.Days()
	p.SelectDay(days[0].ISO)
	if _, err := p.Confirm(); !errors.Is(err, ErrIncompleteSelection) {
		t.Fatalf("expected ErrIncompleteSelection without a time, got %v", err)
	}

	var free string
	for _, opt := range p.Times() {
		if opt.Available {
			free = opt.Time
			break
		}
	}
	if free == "" {
		t.Skip("seed booked the whole grid")
	}
	if !p.SelectTime(free) {
		t.Fatalf("SelectTime(%s) should succeed", free)
	}

	slot, err := p.Confirm()
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if slot.DayLabel != days[0].Label || slot.Date != days[0].ISO || slot.Time != free {
		t.Errorf("unexpected slot: %+v", slot)
	}
}

func TestSelectTimeRequiresDay(t *testing.T) {
	p := newTestPicker(t, time.Date(2024, 12, 9, 10, 0, 0, 0, time.UTC), 1)
	if p.SelectTime("09:00") {
		t.Fatal("SelectTime should fail before a day is chosen")
	}
}

func TestSelectTimeRejectsOffGridLabel(t *testing.T) {
	p := newTestPicker(t, time.Date(2024, 12, 9, 10, 0, 0, 0, time.UTC), 1)
	p.SelectDay(p.Days()[0].ISO)
	if p.SelectTime("12:30") {
		t.Fatal("SelectTime should reject a label outside the grid")
	}
}
