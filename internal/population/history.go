package population

// History is a fixed ring of per-day contact lists, one slot per day of the
// incubation window. A slot is reused when the day counter wraps around to
// its index again, so the ring never describes more than window days.
type History struct {
	slots []historySlot
}

type historySlot struct {
	day      int // -1 when the slot has never been written
	contacts []int
}

// NewHistory creates an empty history with window slots.
func NewHistory(window int) *History {
	if window < 1 {
		window = 1
	}
	slots := make([]historySlot, window)
	for i := range slots {
		slots[i].day = -1
	}
	return &History{slots: slots}
}

// Window returns the number of slots.
func (h *History) Window() int {
	return len(h.slots)
}

// Record notes a contact with id on the given day. A slot still holding an
// older day is cleared first.
func (h *History) Record(day, id int) {
	s := &h.slots[SlotOf(day, len(h.slots))]
	if s.day != day {
		s.day = day
		s.contacts = s.contacts[:0]
	}
	for _, c := range s.contacts {
		if c == id {
			return
		}
	}
	s.contacts = append(s.contacts, id)
}

// Contacts returns the ids recorded for day, or nil when that day has
// rolled out of the window.
func (h *History) Contacts(day int) []int {
	s := h.slots[SlotOf(day, len(h.slots))]
	if s.day != day {
		return nil
	}
	out := make([]int, len(s.contacts))
	copy(out, s.contacts)
	return out
}

// Each calls fn, in slot order, for every slot whose day lies within the
// window ending at now. Slots nobody wrote to since they rolled out of the
// window (an isolated person meets no one) are skipped.
func (h *History) Each(now int, fn func(slot, day int, contacts []int)) {
	window := len(h.slots)
	for i, s := range h.slots {
		if s.day < 0 || len(s.contacts) == 0 {
			continue
		}
		if s.day > now || now-s.day >= window {
			continue
		}
		fn(i, s.day, s.contacts)
	}
}

// Len returns the number of occupied slots.
func (h *History) Len() int {
	n := 0
	for _, s := range h.slots {
		if s.day >= 0 && len(s.contacts) > 0 {
			n++
		}
	}
	return n
}

// SlotOf maps a day onto its ring index.
func SlotOf(day, window int) int {
	return day % window
}

// Elapsed returns the days between a contact recorded in slot and the
// current day, wrapped into [0, window).
func Elapsed(now, slot, window int) int {
	d := SlotOf(now, window) - slot
	if d < 0 {
		d += window
	}
	return d
}
