package domain

// MaxSlots is the number of media positions a product has.
const MaxSlots = 5

// SlotEntry is an occupied slot tagged with its 1-based position.
type SlotEntry[T any] struct {
	Position int
	Value    T
}

// SlotArray is a fixed-capacity, 1-based array whose empty slots are kept in
// place. It is never compacted.
type SlotArray[T any] struct {
	values   [MaxSlots]T
	occupied [MaxSlots]bool
}

func validPosition(pos int) bool {
	return pos >= 1 && pos <= MaxSlots
}

// Len returns the capacity, not the number of occupied slots.
func (a *SlotArray[T]) Len() int {
	return MaxSlots
}

func (a *SlotArray[T]) Get(pos int) (T, bool) {
	var zero T
	if !validPosition(pos) || !a.occupied[pos-1] {
		return zero, false
	}
	return a.values[pos-1], true
}

// Set ignores positions outside 1..MaxSlots.
func (a *SlotArray[T]) Set(pos int, v T) {
	if !validPosition(pos) {
		return
	}
	a.values[pos-1] = v
	a.occupied[pos-1] = true
}

func (a *SlotArray[T]) Clear(pos int) {
	if !validPosition(pos) {
		return
	}
	var zero T
	a.values[pos-1] = zero
	a.occupied[pos-1] = false
}

// Swap exchanges two slots including their empty state.
func (a *SlotArray[T]) Swap(x, y int) {
	if !validPosition(x) || !validPosition(y) || x == y {
		return
	}
	a.values[x-1], a.values[y-1] = a.values[y-1], a.values[x-1]
	a.occupied[x-1], a.occupied[y-1] = a.occupied[y-1], a.occupied[x-1]
}

func (a *SlotArray[T]) IsOccupied(pos int) bool {
	return validPosition(pos) && a.occupied[pos-1]
}

// Occupied counts non-empty slots.
func (a *SlotArray[T]) Occupied() int {
	n := 0
	for _, ok := range a.occupied {
		if ok {
			n++
		}
	}
	return n
}

// First returns the position of the first occupied slot, or 0.
func (a *SlotArray[T]) First() int {
	for i, ok := range a.occupied {
		if ok {
			return i + 1
		}
	}
	return 0
}

func (a *SlotArray[T]) CompactedEntries() []SlotEntry[T] {
	entries := make([]SlotEntry[T], 0, MaxSlots)
	for i := range a.values {
		if a.occupied[i] {
			entries = append(entries, SlotEntry[T]{Position: i + 1, Value: a.values[i]})
		}
	}
	return entries
}

// Pointers renders the array as MaxSlots entries with nil for holes.
func (a *SlotArray[T]) Pointers() []*T {
	out := make([]*T, MaxSlots)
	for i := range a.values {
		if a.occupied[i] {
			v := a.values[i]
			out[i] = &v
		}
	}
	return out
}

// NormalizeRefs builds a slot array from an ordered reference list. Entries
// beyond MaxSlots are dropped and blank entries stay empty.
func NormalizeRefs(refs []string) SlotArray[string] {
	var slots SlotArray[string]
	for i, ref := range refs {
		if i >= MaxSlots {
			break
		}
		if ref == "" {
			continue
		}
		slots.Set(i+1, ref)
	}
	return slots
}

// SlotsFromImages rebuilds the array from stored rows.
func SlotsFromImages(rows []ProductImage) SlotArray[string] {
	var slots SlotArray[string]
	for _, row := range rows {
		slots.Set(row.Position, row.URL)
	}
	return slots
}
