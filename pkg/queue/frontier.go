package queue

import (
	"container/heap"

	"github.com/Sriram-PR/emailscope/pkg/models"
)

// --- Frontier Heap ---

// frontierItem is a queued work item plus its insertion sequence
type frontierItem struct {
	workItem models.WorkItem
	seq      uint64 // Tie-break: earlier insertion pops first
	index    int    // The index of the item in the heap (required by heap interface)
}

// frontierHeap implements heap.Interface ordered by (depth, seq)
type frontierHeap []*frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	if h[i].workItem.Depth != h[j].workItem.Depth {
		return h[i].workItem.Depth < h[j].workItem.Depth
	}
	return h[i].seq < h[j].seq
}

func (h frontierHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *frontierHeap) Push(x any) {
	item := x.(*frontierItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// Frontier is the crawl queue: shallower items first, FIFO within a depth.
// It is owned by a single crawl and is not safe for concurrent use.
type Frontier struct {
	h       frontierHeap
	nextSeq uint64
}

// NewFrontier creates an empty Frontier
func NewFrontier() *Frontier {
	f := &Frontier{}
	heap.Init(&f.h)
	return f
}

// Push enqueues a work item
func (f *Frontier) Push(item models.WorkItem) {
	heap.Push(&f.h, &frontierItem{workItem: item, seq: f.nextSeq})
	f.nextSeq++
}

// Pop removes and returns the shallowest, earliest-queued item.
// ok is false when the frontier is empty.
func (f *Frontier) Pop() (item models.WorkItem, ok bool) {
	if f.h.Len() == 0 {
		return models.WorkItem{}, false
	}
	fi := heap.Pop(&f.h).(*frontierItem)
	return fi.workItem, true
}

// Len returns the number of queued items
func (f *Frontier) Len() int {
	return f.h.Len()
}
