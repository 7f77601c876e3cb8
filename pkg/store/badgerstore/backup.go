package badgerstore

import "io"

// Backup streams every key/value pair in the database to w using
// badger's own versioned backup format, satisfying store.Backuper. The
// master coordinator calls this, after rotating the logical log, to
// send a slave a full copy of the store ahead of log replay.
func (s *BadgerStore) Backup(w io.Writer) error {
	_, err := s.db.Backup(w, 0)
	return err
}
