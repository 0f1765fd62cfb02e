package realtime

// entryIndex records which tree paths hold their own journal entry. Entries
// never nest, since a journal Put replaces everything recorded below it.
type entryIndex struct {
	set  bool
	kids map[string]*entryIndex
}

// ancestor returns the length of the strict prefix of segs that holds an
// entry, or 0 when none does.
func (x *entryIndex) ancestor(segs []string) int {
	cur := x
	for i, s := range segs[:len(segs)-1] {
		next, ok := cur.kids[s]
		if !ok {
			return 0
		}
		if next.set {
			return i + 1
		}
		cur = next
	}
	return 0
}

// put marks segs as an entry and forgets every entry below it.
func (x *entryIndex) put(segs []string) {
	cur := x
	for _, s := range segs {
		if cur.kids == nil {
			cur.kids = make(map[string]*entryIndex)
		}
		next, ok := cur.kids[s]
		if !ok {
			next = &entryIndex{}
			cur.kids[s] = next
		}
		cur = next
	}
	cur.set = true
	cur.kids = nil
}

// drop forgets the entry at segs and every entry below it.
func (x *entryIndex) drop(segs []string) {
	next, ok := x.kids[segs[0]]
	if !ok {
		return
	}
	if len(segs) > 1 {
		next.drop(segs[1:])
		if next.set || len(next.kids) > 0 {
			return
		}
	}
	delete(x.kids, segs[0])
}

func (x *entryIndex) reset() {
	x.set = false
	x.kids = nil
}
