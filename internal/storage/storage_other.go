//go:build !linux && !darwin && !windows

package storage

func removableDrives() []string { return nil }
