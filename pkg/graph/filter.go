package graph

import (
	"cmp"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/loader"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
)

// Selection is the set of raw users and artists kept by top-K filtering.
type Selection struct {
	Users   map[int]struct{}
	Artists map[int]struct{}
}

func (s *Selection) HasUser(id int) bool {
	_, ok := s.Users[id]
	return ok
}

func (s *Selection) HasArtist(id int) bool {
	_, ok := s.Artists[id]
	return ok
}

// Has reports whether both ends of an interaction were selected.
func (s *Selection) Has(user, artist int) bool {
	return s.HasUser(user) && s.HasArtist(artist)
}

type ranked struct {
	id    int
	score int
}

// rank orders ids by score, highest first. Equal scores keep first-seen
// order so the result does not depend on map iteration.
func rank(order []int, scores map[int]int) []ranked {
	out := make([]ranked, 0, len(order))
	for _, id := range order {
		out = append(out, ranked{id: id, score: scores[id]})
	}
	slices.SortStableFunc(out, func(a, b ranked) int {
		return cmp.Compare(b.score, a.score)
	})
	return out
}

func prefix(r []ranked, n int) map[int]struct{} {
	n = max(0, min(n, len(r)))
	set := make(map[int]struct{}, n)
	for _, e := range r[:n] {
		set[e.id] = struct{}{}
	}
	return set
}

// SelectTop ranks users by number of interactions and artists by summed
// weight and keeps the first maxUsers and maxArtists of each ranking. The
// two rankings are independent, so the filtered interaction count can be
// far below maxUsers * maxArtists.
func SelectTop(rows []common.Interaction, maxUsers, maxArtists int) *Selection {
	userCounts := make(map[int]int)
	artistWeights := make(map[int]int)
	var userOrder, artistOrder []int

	for _, row := range rows {
		if _, ok := userCounts[row.User]; !ok {
			userOrder = append(userOrder, row.User)
		}
		userCounts[row.User]++
		if _, ok := artistWeights[row.Item]; !ok {
			artistOrder = append(artistOrder, row.Item)
		}
		artistWeights[row.Item] += row.Weight
	}

	return &Selection{
		Users:   prefix(rank(userOrder, userCounts), maxUsers),
		Artists: prefix(rank(artistOrder, artistWeights), maxArtists),
	}
}

// FilterRaw reduces the raw interaction file in rawPath to the top-K
// selection. Before the first rewrite a backup copy is stored next to the
// file; later runs leave that backup alone. A missing interaction file
// disables filtering: the result is (nil, nil).
func FilterRaw(rawPath string, maxUsers, maxArtists int) (*Selection, error) {
	path := filepath.Join(rawPath, common.InteractionsFile)
	rows, header, stats, err := loader.ReadInteractions(path)
	if errors.Is(err, loader.ErrMissingSource) {
		logger.Warn("[Filter] Interaction file not found, skipping filtering", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Info("[Filter] Filtering raw data",
		"interactions", len(rows), "skipped", stats.Skipped,
		"max_users", maxUsers, "max_artists", maxArtists,
	)

	sel := SelectTop(rows, maxUsers, maxArtists)
	logger.Info("[Filter] Selection", "users", len(sel.Users), "artists", len(sel.Artists))

	kept := rows[:0:0]
	for _, row := range rows {
		if sel.Has(row.User, row.Item) {
			kept = append(kept, row)
		}
	}

	backup := path + common.BackupSuffix
	if _, err := os.Stat(backup); errors.Is(err, fs.ErrNotExist) {
		if err := copyFile(path, backup); err != nil {
			return nil, err
		}
		logger.Info("[Filter] Backup created", "path", backup)
	}

	if err := loader.WriteInteractions(path, header, kept); err != nil {
		return nil, err
	}
	logger.Info("[Filter] Interaction file rewritten", "interactions", len(kept))

	return sel, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
