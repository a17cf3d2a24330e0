//go:build !unix && !windows

package transport

func deviceGone(error) bool { return false }
