// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

// queueEntry is either a sample or a marker. epoch is the stream's stop
// epoch at submission; a Stop flushes every entry older than its own epoch.
// seq is the sequence number of the operation that queued the entry and is
// carried by the entry's completion event.
type queueEntry struct {
	sample *Sample
	marker *Marker
	epoch  uint64
	seq    uint64
}

func (e queueEntry) isMarker() bool {
	return e.marker != nil
}

// entryQueue is the FIFO of samples and markers awaiting write.
// It is not safe for concurrent use; the stream mutex guards it.
type entryQueue struct {
	items []queueEntry
	head  int
}

func (q *entryQueue) PushBack(e queueEntry) {
	q.items = append(q.items, e)
}

func (q *entryQueue) Front() (queueEntry, bool) {
	if q.head >= len(q.items) {
		return queueEntry{}, false
	}
	return q.items[q.head], true
}

func (q *entryQueue) PopFront() (queueEntry, bool) {
	if q.head >= len(q.items) {
		return queueEntry{}, false
	}
	e := q.items[q.head]
	q.items[q.head] = queueEntry{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return e, true
}

func (q *entryQueue) Len() int {
	return len(q.items) - q.head
}

func (q *entryQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes and returns every entry in order.
func (q *entryQueue) Clear() []queueEntry {
	out := append([]queueEntry(nil), q.items[q.head:]...)
	q.items = nil
	q.head = 0
	return out
}
