package scheduling

import (
	"fmt"
	"math/rand"
	"time"
)

// businessDayCount is the booking lookahead: exactly this many business days,
// weekends excluded, starting tomorrow.
const businessDayCount = 5

// bookedProbability is the chance that a given time label is pre-booked for
// the whole offering. The booked set is shared across all offered days; this
// is a demo booking surface, not a calendar integration.
const bookedProbability = 0.30

// timeGrid is the fixed daily grid: a morning block and an afternoon block,
// half-hour marks, no lunch-hour slots.
var timeGrid = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00",
}

var frenchWeekdays = [...]string{
	time.Sunday:    "dimanche",
	time.Monday:    "lundi",
	time.Tuesday:   "mardi",
	time.Wednesday: "mercredi",
	time.Thursday:  "jeudi",
	time.Friday:    "vendredi",
	time.Saturday:  "samedi",
}

var frenchMonths = [...]string{
	time.January:   "janvier",
	time.February:  "février",
	time.March:     "mars",
	time.April:     "avril",
	time.May:       "mai",
	time.June:      "juin",
	time.July:      "juillet",
	time.August:    "août",
	time.September: "septembre",
	time.October:   "octobre",
	time.November:  "novembre",
	time.December:  "décembre",
}

// Day is one offerable business day.
type Day struct {
	Label string `json:"label"` // "jeudi 12 décembre"
	ISO   string `json:"iso"`   // "2024-12-12"
}

// MeetingSlot is a confirmed day+time selection.
type MeetingSlot struct {
	DayLabel string `json:"day_label"`
	Time     string `json:"time"`
	Date     string `json:"date"` // ISO date of the chosen day
}

// Picker generates a bounded, session-stable set of offerable meeting slots
// and validates a selection against it. The day list and the booked subset
// are computed once at construction and never regenerated. Picker is not
// safe for concurrent use.
type Picker struct {
	days        []Day
	booked      map[string]struct{}
	selectedDay *Day
	selected    string
}

// NewPicker builds a picker anchored at now, using rng for the booked subset.
// A nil rng seeds from the clock.
func NewPicker(now time.Time, rng *rand.Rand) *Picker {
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}

	p := &Picker{
		booked: make(map[string]struct{}),
	}

	day := now
	for len(p.days) < businessDayCount {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p.days = append(p.days, Day{
			Label: frenchDayLabel(day),
			ISO:   day.Format("2006-01-02"),
		})
	}

	for _, label := range timeGrid {
		if rng.Float64() < bookedProbability {
			p.booked[label] = struct{}{}
		}
	}

	return p
}

func frenchDayLabel(t time.Time) string {
	return fmt.Sprintf("%s %d %s", frenchWeekdays[t.Weekday()], t.Day(), frenchMonths[t.Month()])
}

// Days returns the offered business days in order.
func (p *Picker) Days() []Day {
	out := make([]Day, len(p.days))
	copy(out, p.days)
	return out
}

// Times returns the time grid with availability for the current offering.
func (p *Picker) Times() []TimeOption {
	out := make([]TimeOption, 0, len(timeGrid))
	for _, label := range timeGrid {
		_, booked := p.booked[label]
		out = append(out, TimeOption{Time: label, Available: !booked})
	}
	return out
}

// TimeOption pairs a grid label with its availability.
type TimeOption struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// SelectDay chooses one of the offered days and resets any previously chosen
// time. Returns false if the day was not offered.
func (p *Picker) SelectDay(iso string) bool {
	for i := range p.days {
		if p.days[i].ISO == iso {
			p.selectedDay = &p.days[i]
			p.selected = ""
			return true
		}
	}
	return false
}

// SelectTime chooses a time label for the selected day. Booked labels and
// labels outside the grid are rejected as a no-op.
func (p *Picker) SelectTime(label string) bool {
	if p.selectedDay == nil {
		return false
	}
	if _, booked := p.booked[label]; booked {
		return false
	}
	for _, t := range timeGrid {
		if t == label {
			p.selected = label
			return true
		}
	}
	return false
}

// Selection returns the current partial selection. The slot is nil until a
// time has been chosen.
func (p *Picker) Selection() (*Day, *MeetingSlot) {
	if p.selectedDay == nil {
		return nil, nil
	}
	day := *p.selectedDay
	if p.selected == "" {
		return &day, nil
	}
	return &day, &MeetingSlot{
		DayLabel: day.Label,
		Time:     p.selected,
		Date:     day.ISO,
	}
}

// Confirm returns the chosen slot. It fails with ErrIncompleteSelection
// unless both a day and an unbooked time have been selected.
func (p *Picker) Confirm() (MeetingSlot, error) {
	if p.selectedDay == nil || p.selected == "" {
		return MeetingSlot{}, ErrIncompleteSelection
	}
	return MeetingSlot{
		DayLabel: p.selectedDay.Label,
		Time:     p.selected,
		Date:     p.selectedDay.ISO,
	}, nil
}
