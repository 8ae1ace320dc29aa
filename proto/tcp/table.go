package tcp

import "sort"

// Table holds the control blocks of every connection, keyed by the
// (local, remote) endpoint pair.
type Table struct {
	entries map[Key]*controlBlock
}

func NewTable() *Table {
	return &Table{
		entries: make(map[Key]*controlBlock),
	}
}

func (t *Table) Get(key Key) (*controlBlock, bool) {
	cb, ok := t.entries[key]
	return cb, ok
}

func (t *Table) Insert(cb *controlBlock) {
	t.entries[cb.key] = cb
}

func (t *Table) Delete(key Key) {
	delete(t.entries, key)
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Range calls f for each entry in key order until f returns false.
// f may delete the entry it is called with.
func (t *Table) Range(f func(cb *controlBlock) bool) {
	keys := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	for _, k := range keys {
		cb, ok := t.entries[k]
		if !ok {
			continue
		}
		if !f(cb) {
			return
		}
	}
}
