/*
Copyright 2026 Pextra Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
// Package nameindex maps domain names to values and answers closest-enclosing
// name queries.
//
// Names are kept in a label tree rooted at ".", walked from the top-level
// label down, so the longest registered ancestor of a name is the deepest
// occupied node on its path. The index does no locking of its own: any number
// of goroutines may call Find, Len and All concurrently, but writers must be
// serialised against everything else by the owner.
package nameindex

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/miekg/dns"
)

var (
	ErrExists      = errors.New("name already exists")
	ErrNotFound    = errors.New("name not found")
	ErrInvalidName = errors.New("invalid domain name")
)

// FindOptions selects how Find treats names that are not registered exactly.
type FindOptions uint8

const (
	// FindExact only matches the name itself.
	FindExact FindOptions = 0
	// FindPartial falls back to the closest registered ancestor.
	FindPartial FindOptions = 1 << 0
	// FindNoExact skips the name itself and only considers strict ancestors.
	FindNoExact FindOptions = 1 << 1
)

// Match is the result of a successful Find.
type Match[T any] struct {
	// Name is the canonical form of the registered name that matched.
	Name  string
	Value T
	// Exact is set when Name equals the queried name.
	Exact bool
}

type node[T any] struct {
	children map[string]*node[T]

	occupied bool
	name     string
	value    T
}

type Index[T any] struct {
	root  *node[T]
	count int
}

func New[T any]() *Index[T] {
	return &Index[T]{root: &node[T]{}}
}

// split canonicalises name and returns its labels, top-level label first.
func split(name string) (string, []string, error) {
	if _, ok := dns.IsDomainName(name); !ok || name == "" {
		return "", nil, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	canon := dns.CanonicalName(name)
	labels := dns.SplitDomainName(canon)
	slices.Reverse(labels)
	return canon, labels, nil
}

// Insert registers v under name.
func (x *Index[T]) Insert(name string, v T) error {
	canon, labels, err := split(name)
	if err != nil {
		return err
	}

	n := x.root
	for _, l := range labels {
		child, ok := n.children[l]
		if !ok {
			if n.children == nil {
				n.children = make(map[string]*node[T])
			}
			child = &node[T]{}
			n.children[l] = child
		}
		n = child
	}
	if n.occupied {
		return fmt.Errorf("%s: %w", canon, ErrExists)
	}

	n.occupied = true
	n.name = canon
	n.value = v
	x.count++
	return nil
}

// Remove unregisters name and returns the value it held.
func (x *Index[T]) Remove(name string) (T, error) {
	var zero T

	canon, labels, err := split(name)
	if err != nil {
		return zero, err
	}

	path := make([]*node[T], 0, len(labels)+1)
	n := x.root
	path = append(path, n)
	for _, l := range labels {
		n = n.children[l]
		if n == nil {
			return zero, fmt.Errorf("%s: %w", canon, ErrNotFound)
		}
		path = append(path, n)
	}
	if !n.occupied {
		return zero, fmt.Errorf("%s: %w", canon, ErrNotFound)
	}

	v := n.value
	n.occupied = false
	n.name = ""
	n.value = zero
	x.count--

	// Prune empty interior nodes bottom-up; the root always stays.
	for i := len(path) - 1; i > 0; i-- {
		cur := path[i]
		if cur.occupied || len(cur.children) > 0 {
			break
		}
		delete(path[i-1].children, labels[i-1])
	}
	return v, nil
}

// Find looks name up according to opts. ErrNotFound is returned when nothing
// acceptable is registered.
func (x *Index[T]) Find(name string, opts FindOptions) (Match[T], error) {
	canon, labels, err := split(name)
	if err != nil {
		return Match[T]{}, err
	}

	noExact := opts&FindNoExact != 0
	partial := opts&FindPartial != 0 || noExact

	var best *node[T]
	depth := -1
	n := x.root
	if n.occupied && !(noExact && len(labels) == 0) {
		best, depth = n, 0
	}
	for i, l := range labels {
		n = n.children[l]
		if n == nil {
			break
		}
		if !n.occupied {
			continue
		}
		if noExact && i == len(labels)-1 {
			break
		}
		best, depth = n, i+1
	}

	exact := depth == len(labels)
	if best == nil || (!partial && !exact) {
		return Match[T]{}, fmt.Errorf("%s: %w", canon, ErrNotFound)
	}
	return Match[T]{Name: best.name, Value: best.value, Exact: exact}, nil
}

// Len returns the number of registered names.
func (x *Index[T]) Len() int {
	return x.count
}

// All yields every registered name and its value. Siblings are visited in
// label order and parents before their descendants.
func (x *Index[T]) All() iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		x.root.walk(yield)
	}
}

func (n *node[T]) walk(yield func(string, T) bool) bool {
	if n.occupied && !yield(n.name, n.value) {
		return false
	}
	for _, l := range slices.Sorted(maps.Keys(n.children)) {
		if !n.children[l].walk(yield) {
			return false
		}
	}
	return true
}
