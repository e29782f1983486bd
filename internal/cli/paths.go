package cli

import "path/filepath"

// storeDirFor returns the directory holding every *.db file under a
// project root (spec §6 on-disk layout: sessions.db, mail.db, events.db,
// metrics.db, merge-queue.db, audit.db all live directly under .legio/).
func storeDirFor(projectRoot string) string {
	return filepath.Join(projectRoot, ".legio")
}
