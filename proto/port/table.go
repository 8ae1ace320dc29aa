package port

import (
	"fmt"
	"sort"
	"sync"
)

const (
	MIN_PORT int = 1
	MAX_PORT int = 65535
)

// Table is the set of local ports accepting passive opens.
// An empty table accepts on every port.
type Table struct {
	Entry []int
	mutex *sync.RWMutex
}

func New() (*Table, error) {
	return &Table{
		Entry: make([]int, 0, 16),
		mutex: &sync.RWMutex{},
	}, nil
}

func (t *Table) Bind(port int) error {
	if port < MIN_PORT || port > MAX_PORT {
		return fmt.Errorf("invalid port %d", port)
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if _, ok := t.search(port); ok {
		return fmt.Errorf("port %d is already in use.", port)
	}
	t.Entry = append(t.Entry, port)
	sort.Ints(t.Entry)
	return nil
}

func (t *Table) Unbind(port int) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	index, ok := t.search(port)
	if !ok {
		return fmt.Errorf("port %d is not bound", port)
	}
	t.Entry = append(t.Entry[:index], t.Entry[index+1:]...)
	return nil
}

func (t *Table) IsBound(port int) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if len(t.Entry) == 0 {
		return true
	}
	_, ok := t.search(port)
	return ok
}

func (t *Table) Ports() []int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return append([]int(nil), t.Entry...)
}

func (t *Table) search(port int) (int, bool) {
	for index, p := range t.Entry {
		if p == port {
			return index, true
		}
	}
	return -1, false
}
