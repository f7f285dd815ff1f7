package disk

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrCrossDevice marks a rename that failed because source and destination
// live on different filesystems
var ErrCrossDevice = errors.New("source and destination are on different devices")

// DeviceID returns the device number of the filesystem holding path
func DeviceID(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return uint64(st.Dev), nil
}

// SameDevice reports whether a and b live on the same filesystem, i.e.
// whether a rename between them can succeed
func SameDevice(a, b string) (bool, error) {
	da, err := DeviceID(a)
	if err != nil {
		return false, err
	}
	db, err := DeviceID(b)
	if err != nil {
		return false, err
	}
	return da == db, nil
}

// IsCrossDevice reports whether err is the EXDEV failure of a rename
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV) || errors.Is(err, ErrCrossDevice)
}

// GetDiskUsage returns the percentage of disk space used for a given path
func GetDiskUsage(path string) (usedPercent float64, freeBytes int64, totalBytes int64, err error) {
	var stat unix.Statfs_t
	if err = unix.Statfs(path, &stat); err != nil {
		return 0, 0, 0, err
	}

	totalBytes = int64(stat.Blocks) * int64(stat.Bsize)
	freeBytes = int64(stat.Bavail) * int64(stat.Bsize)
	usedBytes := totalBytes - freeBytes

	if totalBytes > 0 {
		usedPercent = (float64(usedBytes) / float64(totalBytes)) * 100.0
	}

	return usedPercent, freeBytes, totalBytes, nil
}
