package common

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
)

// File names shared by preprocessing and loading.
const (
	InteractionsFile = "user_artists.dat"
	CatalogFile      = "artists.dat"
	BackupSuffix     = ".backup"

	KGFileBase      = "kg_final"
	RatingsFileBase = "ratings_final"
	SmallSuffix     = "_small"
	TextExt         = ".txt"
	CacheExt        = ".bin"
)

// WriteAtomic writes path through a temporary sibling that is renamed into
// place once write and the flush succeed. Readers see either the old file
// or the complete new one.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
