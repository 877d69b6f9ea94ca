package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Footprint reports how much disk space the database and project index occupy.
type Footprint struct {
	DatabaseBytes     int64 `json:"database_bytes"`
	ProjectIndexBytes int64 `json:"project_index_bytes"`
}

// Total returns the combined size.
func (f Footprint) Total() int64 {
	return f.DatabaseBytes + f.ProjectIndexBytes
}

// MeasureFootprint sizes the database file (with its WAL and shm siblings) and
// the project index directory. Missing paths count as zero.
func MeasureFootprint(databasePath, projectIndexPath string) (Footprint, error) {
	var fp Footprint
	for _, p := range []string{databasePath, databasePath + "-wal", databasePath + "-shm"} {
		n, err := pathSize(p)
		if err != nil {
			return Footprint{}, err
		}
		fp.DatabaseBytes += n
	}
	n, err := pathSize(projectIndexPath)
	if err != nil {
		return Footprint{}, err
	}
	fp.ProjectIndexBytes = n
	return fp, nil
}

func pathSize(p string) (int64, error) {
	if p == "" {
		return 0, nil
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
