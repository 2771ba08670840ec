package scan

import (
	"encoding/json"
	"fmt"
	"math/bits"

	"github.com/nao1215/ringscan/pkg/geometry"
)

// SlotSet is a fixed set of geometry.SlotCount slot flags for one ring.
// The zero value is empty. Out-of-range indices are clamped.
type SlotSet struct {
	words [2]uint64
}

const fullHighWord = 1<<(geometry.SlotCount-64) - 1

// Has reports whether slot is set.
func (s SlotSet) Has(slot int) bool {
	slot = geometry.ClampSlot(slot)
	return s.words[slot/64]&(1<<(slot%64)) != 0
}

// Set marks slot and reports whether it was previously unset.
func (s *SlotSet) Set(slot int) bool {
	slot = geometry.ClampSlot(slot)
	mask := uint64(1) << (slot % 64)
	if s.words[slot/64]&mask != 0 {
		return false
	}
	s.words[slot/64] |= mask
	return true
}

// Count returns the number of set slots.
func (s SlotSet) Count() int {
	return bits.OnesCount64(s.words[0]) + bits.OnesCount64(s.words[1])
}

// Full reports whether every slot is set.
func (s SlotSet) Full() bool {
	return s.words[0] == ^uint64(0) && s.words[1] == fullHighWord
}

// Clear unsets every slot.
func (s *SlotSet) Clear() {
	s.words = [2]uint64{}
}

// Slots returns the set slot indices in ascending order.
func (s SlotSet) Slots() []int {
	out := make([]int, 0, s.Count())
	for slot := 0; slot < geometry.SlotCount; slot++ {
		if s.Has(slot) {
			out = append(out, slot)
		}
	}
	return out
}

// Missing returns the unset slot indices in ascending order.
func (s SlotSet) Missing() []int {
	out := make([]int, 0, geometry.SlotCount-s.Count())
	for slot := 0; slot < geometry.SlotCount; slot++ {
		if !s.Has(slot) {
			out = append(out, slot)
		}
	}
	return out
}

// MarshalJSON encodes the set as a sorted list of slot indices.
func (s SlotSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slots())
}

// UnmarshalJSON decodes a list of slot indices.
func (s *SlotSet) UnmarshalJSON(data []byte) error {
	var slots []int
	if err := json.Unmarshal(data, &slots); err != nil {
		return err
	}
	s.Clear()
	for _, slot := range slots {
		if slot < 0 || slot >= geometry.SlotCount {
			return fmt.Errorf("slot %d out of range 0..%d", slot, geometry.SlotCount-1)
		}
		s.Set(slot)
	}
	return nil
}
