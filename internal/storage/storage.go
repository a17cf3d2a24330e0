// Package storage finds removable media the operator can record to.
package storage

import (
	"os"
	"path/filepath"
	"sort"
)

// RemovableDrives returns candidate mount paths for flight logs. The
// result may be empty; errors reading individual locations are ignored.
func RemovableDrives() []string {
	drives := removableDrives()
	sort.Strings(drives)
	return drives
}

// scanMounts returns the mount points among the children and grandchildren
// of each root, e.g. /media/usb0 and /media/<user>/<label>.
func scanMounts(roots []string, isMount func(string) bool) []string {
	var found []string
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			p := filepath.Join(root, e.Name())
			if isMount(p) {
				found = append(found, p)
				continue
			}
			sub, err := os.ReadDir(p)
			if err != nil {
				continue
			}
			for _, s := range sub {
				sp := filepath.Join(p, s.Name())
				if s.IsDir() && isMount(sp) {
					found = append(found, sp)
				}
			}
		}
	}
	return found
}
