package repository

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sifan077/HashURL/internal/app/model"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	// Put stores link under link.Code, replacing any earlier record. When a
	// record was replaced it is returned with replaced set to true.
	Put(link model.Link) (previous model.Link, replaced bool)
	GetByCode(code string) (model.Link, error)
	// IncrementClicks atomically adds one click and returns the updated link.
	IncrementClicks(code string) (model.Link, error)
	// IncrementClicksIf adds one click only when allow accepts the stored
	// link. A replacing Put cannot land between the check and the increment.
	// An allow error is returned unchanged and leaves the count untouched.
	IncrementClicksIf(code string, allow func(model.Link) error) (model.Link, error)
	// Snapshot returns every stored link. Later writes never alter the
	// returned slice.
	Snapshot() []model.Link
	Count() int
}

// entry owns one stored link. Everything except clicks is fixed once the
// entry is published in the map.
type entry struct {
	link   model.Link
	clicks atomic.Int64
}

func (e *entry) view() model.Link {
	l := e.link
	l.ClickCount = e.clicks.Load()
	return l
}

type memoryLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*entry
}

// NewMemoryLinkRepository returns a process-local LinkRepository.
func NewMemoryLinkRepository() LinkRepository {
	return &memoryLinkRepository{links: make(map[string]*entry)}
}

func (r *memoryLinkRepository) Put(link model.Link) (model.Link, bool) {
	e := &entry{link: link}
	e.clicks.Store(link.ClickCount)
	e.link.ClickCount = 0

	r.mu.Lock()
	old, replaced := r.links[link.Code]
	r.links[link.Code] = e
	r.mu.Unlock()

	if !replaced {
		return model.Link{}, false
	}
	return old.view(), true
}

func (r *memoryLinkRepository) GetByCode(code string) (model.Link, error) {
	r.mu.RLock()
	e, ok := r.links[code]
	r.mu.RUnlock()
	if !ok {
		return model.Link{}, ErrLinkNotFound
	}
	return e.view(), nil
}

func (r *memoryLinkRepository) IncrementClicks(code string) (model.Link, error) {
	return r.IncrementClicksIf(code, nil)
}

func (r *memoryLinkRepository) IncrementClicksIf(code string, allow func(model.Link) error) (model.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.links[code]
	if !ok {
		return model.Link{}, ErrLinkNotFound
	}
	if allow != nil {
		if err := allow(e.view()); err != nil {
			return model.Link{}, err
		}
	}

	l := e.link
	l.ClickCount = e.clicks.Add(1)
	return l, nil
}

func (r *memoryLinkRepository) Snapshot() []model.Link {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]model.Link, 0, len(r.links))
	for _, e := range r.links {
		result = append(result, e.view())
	}
	return result
}

func (r *memoryLinkRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}
