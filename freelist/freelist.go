// Package freelist implements the intrusive doubly-linked list used to
// chain the free blocks of a single allocation order.
//
// On bare metal the original allocator overlays each node on the first
// bytes of the free page itself, since a free page carries no payload. A
// memory-safe Go rendition cannot safely alias a byte slice as a pointer
// node without unsafe tricks that defeat the point of a safe target
// language, so nodes here are addressed by index into an owning slice
// (mirroring how biscuit's mem.Physmem_t threads its own free list through
// Pgs[i].nexti by array index rather than raw pointer). Allocation and
// release remain O(1) arithmetic.
package freelist

// Nil is the sentinel index meaning "no node" / "list boundary".
const Nil int32 = -1

// Node is one element of the list. It lives in a slice owned by the
// caller (one entry per frame offset within an area) and is only
// meaningful while its frame is free.
type Node struct {
	next, prev int32
}

// List is the per-order sentinel. Its zero value is not a valid empty
// list; use Init.
type List struct {
	head, tail int32
}

// Init resets l to the empty list.
func (l *List) Init() {
	l.head, l.tail = Nil, Nil
}

// Empty reports whether the list has no nodes.
func (l *List) Empty() bool {
	return l.head == Nil
}

// Front returns the index of the head node, or Nil if the list is empty.
func (l *List) Front() int32 {
	return l.head
}

// Add inserts idx at the head of the list. nodes must be the slice owning
// idx and every other index already linked into l.
func Add(l *List, nodes []Node, idx int32) {
	nodes[idx].prev = Nil
	nodes[idx].next = l.head
	if l.head != Nil {
		nodes[l.head].prev = idx
	} else {
		l.tail = idx
	}
	l.head = idx
}

// Remove unlinks idx from l. idx must currently be a member of l.
func Remove(l *List, nodes []Node, idx int32) {
	n := nodes[idx]
	if n.prev != Nil {
		nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != Nil {
		nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}
	nodes[idx] = Node{next: Nil, prev: Nil}
}
