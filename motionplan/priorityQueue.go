package motionplan

import "container/heap"

// openEntry is an element of the A* open set.
type openEntry struct {
	cell cell
	f    float64
	// insertion order, used to break ties between equal f scores deterministically.
	seq uint64
}

// openSet is a min-heap ordered by (f, seq).
type openSet struct {
	entries []openEntry
	nextSeq uint64
}

func (s *openSet) Len() int { return len(s.entries) }

func (s *openSet) Less(i, j int) bool {
	if s.entries[i].f != s.entries[j].f {
		return s.entries[i].f < s.entries[j].f
	}
	return s.entries[i].seq < s.entries[j].seq
}

func (s *openSet) Swap(i, j int) { s.entries[i], s.entries[j] = s.entries[j], s.entries[i] }

func (s *openSet) Push(x interface{}) { s.entries = append(s.entries, x.(openEntry)) }

func (s *openSet) Pop() interface{} {
	old := s.entries
	n := len(old)
	e := old[n-1]
	s.entries = old[:n-1]
	return e
}

func (s *openSet) push(c cell, f float64) {
	heap.Push(s, openEntry{cell: c, f: f, seq: s.nextSeq})
	s.nextSeq++
}

func (s *openSet) pop() openEntry {
	return heap.Pop(s).(openEntry)
}
