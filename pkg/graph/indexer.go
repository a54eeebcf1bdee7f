package graph

import "errors"

// EntityIndexer assigns contiguous indices to raw artist and user ids.
// Artists are indexed first, in catalog order; users follow in the order
// their first retained interaction is seen. No sorting is applied, so
// indices are stable as long as the input order is.
//
// As entities, artists keep their index and users are offset by the
// artist count: artists occupy [0, nArtists), users [nArtists, nEntities).
type EntityIndexer struct {
	artists     map[int]int
	artistOrder []int
	users       map[int]int
	userOrder   []int
}

func NewEntityIndexer() *EntityIndexer {
	return &EntityIndexer{
		artists: make(map[int]int),
		users:   make(map[int]int),
	}
}

// IndexArtists indexes catalog ids in encounter order. With a non-nil
// selection only selected ids are indexed. A repeated id keeps its first
// index. Artists must be indexed before any user because the user offset
// depends on the artist count.
func (x *EntityIndexer) IndexArtists(catalog []int, selection *Selection) error {
	if len(x.userOrder) > 0 {
		return errors.New("artists must be indexed before users")
	}
	for _, id := range catalog {
		if selection != nil && !selection.HasArtist(id) {
			continue
		}
		if _, ok := x.artists[id]; ok {
			continue
		}
		x.artists[id] = len(x.artistOrder)
		x.artistOrder = append(x.artistOrder, id)
	}
	return nil
}

// AddUser returns the index of a raw user id, assigning the next free one
// on first sight.
func (x *EntityIndexer) AddUser(raw int) int {
	if idx, ok := x.users[raw]; ok {
		return idx
	}
	idx := len(x.userOrder)
	x.users[raw] = idx
	x.userOrder = append(x.userOrder, raw)
	return idx
}

func (x *EntityIndexer) Artist(raw int) (int, bool) {
	idx, ok := x.artists[raw]
	return idx, ok
}

func (x *EntityIndexer) User(raw int) (int, bool) {
	idx, ok := x.users[raw]
	return idx, ok
}

func (x *EntityIndexer) NumArtists() int  { return len(x.artistOrder) }
func (x *EntityIndexer) NumUsers() int    { return len(x.userOrder) }
func (x *EntityIndexer) NumEntities() int { return len(x.artistOrder) + len(x.userOrder) }

// UserEntity converts a user index into its entity id.
func (x *EntityIndexer) UserEntity(userIdx int) int {
	return len(x.artistOrder) + userIdx
}

// ArtistIDs returns raw artist ids in index order.
func (x *EntityIndexer) ArtistIDs() []int {
	return append([]int(nil), x.artistOrder...)
}

// UserIDs returns raw user ids in index order.
func (x *EntityIndexer) UserIDs() []int {
	return append([]int(nil), x.userOrder...)
}
