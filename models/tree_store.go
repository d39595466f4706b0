package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcast/quadtree"
	"github.com/google/uuid"
)

// TreeStore holds the published trees of a server. Trees are built outside
// of the store lock and only become visible once complete, so readers never
// observe a partially built tree.
type TreeStore struct {
	// The maximum number of trees kept at the same time. Zero means no limit.
	MaxTrees int

	// The maximum size of the trees built by Build. Zero uses
	// DefaultMaxTreeSize. Published trees are not checked.
	MaxTreeSize int

	initOnce sync.Once
	mutex    sync.RWMutex
	trees    map[string]*Tree
	ids      SequentialIDGenerator
}

func (s *TreeStore) init() {
	s.trees = map[string]*Tree{}
}

// Build generates a random tree with the given parameters and publishes it.
func (s *TreeStore) Build(ctx context.Context, params BuildParams) (*Tree, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if err := params.CheckSizeLimit(s.MaxTreeSize); err != nil {
		return nil, err
	}

	if err := s.checkCapacity(); err != nil {
		return nil, err
	}

	start := time.Now()
	tree, err := quadtree.Build(params.Size, params.Generator())
	if err != nil {
		return nil, errors.New("building tree failed").
			WithType(ErrTypeInvalidParams).
			Wrap(err)
	}
	instrumentBuildLatency(GeneratorRandom, time.Since(start))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Publish(tree, GeneratorRandom, params)
}

// Publish makes an already built tree available to readers.
func (s *TreeStore) Publish(tree *quadtree.Tree, generator string, params BuildParams) (*Tree, error) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.MaxTrees > 0 && len(s.trees) >= s.MaxTrees {
		return nil, storeFullError(s.MaxTrees)
	}

	t := &Tree{
		Tree:      tree,
		ID:        uuid.NewString(),
		Number:    s.ids.New(),
		Generator: generator,
		Params:    params,
		CreatedAt: time.Now(),
	}
	s.trees[t.ID] = t

	instrumentIncreaseTreeGauge(generator)
	instrumentCountTree(generator)
	return t, nil
}

func (s *TreeStore) Get(id string) (*Tree, error) {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	t, ok := s.trees[id]
	if !ok {
		return nil, errors.New("tree not found").
			WithType(ErrTypeTreeNotFound).
			WithTag("tree_id", id)
	}
	return t, nil
}

// List returns the published trees in publication order.
func (s *TreeStore) List() []*Tree {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	trees := make([]*Tree, 0, len(s.trees))
	for _, t := range s.trees {
		trees = append(trees, t)
	}

	sort.Slice(trees, func(i, j int) bool {
		return trees[i].Number < trees[j].Number
	})
	return trees
}

// Remove unpublishes a tree. Casts already holding the tree finish
// normally.
func (s *TreeStore) Remove(id string) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.trees[id]
	if !ok {
		return errors.New("tree not found").
			WithType(ErrTypeTreeNotFound).
			WithTag("tree_id", id)
	}
	delete(s.trees, id)

	instrumentDecreaseTreeGauge(t.Generator)
	return nil
}

func (s *TreeStore) Len() int {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.trees)
}

func (s *TreeStore) checkCapacity() error {
	if s.MaxTrees > 0 && s.Len() >= s.MaxTrees {
		return storeFullError(s.MaxTrees)
	}
	return nil
}

func storeFullError(max int) error {
	return errors.New("tree store is full").
		WithType(ErrTypeStoreFull).
		WithTag("max_trees", max)
}
