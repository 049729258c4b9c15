package storage

import (
	"os"
)

// SizeBytes returns the on-disk size of the ledger, including the WAL and
// shared-memory files SQLite keeps next to it. Missing files count as zero.
func (s *SQLiteStorage) SizeBytes() (int64, error) {
	return fileSizes(s.path, s.path+"-wal", s.path+"-shm")
}

func fileSizes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
