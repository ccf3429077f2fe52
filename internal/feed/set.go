package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Set is the collection of feeds served by one process, keyed by source id.
type Set struct {
	feeds map[string]*Feed
	order []string
}

func NewSet(feeds ...*Feed) (*Set, error) {
	s := &Set{feeds: make(map[string]*Feed, len(feeds))}
	for _, f := range feeds {
		id := f.Info().ID
		if _, dup := s.feeds[id]; dup {
			return nil, fmt.Errorf("duplicate source id %q", id)
		}
		s.feeds[id] = f
		s.order = append(s.order, id)
	}
	sort.Strings(s.order)
	return s, nil
}

func (s *Set) Get(id string) (*Feed, bool) {
	f, ok := s.feeds[id]
	return f, ok
}

// List returns feeds ordered by id.
func (s *Set) List() []*Feed {
	out := make([]*Feed, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.feeds[id])
	}
	return out
}

// FetchAll fetches every feed concurrently and returns errors by id.
func (s *Set) FetchAll(ctx context.Context) map[string]error {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs = map[string]error{}
	)
	for id, f := range s.feeds {
		wg.Add(1)
		go func(id string, f *Feed) {
			defer wg.Done()
			if err := f.Fetch(ctx); err != nil {
				mu.Lock()
				errs[id] = err
				mu.Unlock()
			}
		}(id, f)
	}
	wg.Wait()
	return errs
}

// Run starts every feed's refresh loop and blocks until ctx is done.
func (s *Set) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, f := range s.feeds {
		wg.Add(1)
		go func(f *Feed) {
			defer wg.Done()
			f.Run(ctx)
		}(f)
	}
	wg.Wait()
}
