package archive

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/traitcapture/timestream/internal/errs"
)

// TimestampLayout is the canonical on-disk timestamp encoding. It is
// used both as the side-table key format and inside image filenames,
// which is why archive names must not contain the separator.
const TimestampLayout = "2006_01_02_15_04_05"

// FormatTimestamp renders a timestamp in the canonical key format.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a canonical timestamp key.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, errs.Configf("archive", "bad timestamp %q: %v", s, err)
	}
	return t, nil
}

// TimePath returns the v1 relative path for a frame: nested date
// directories plus a deterministic timestamp-encoded filename. subsec
// disambiguates multiple images at the same second.
func TimePath(name, ext string, t time.Time, subsec int) string {
	dir := filepath.Join(
		t.Format("2006"),
		t.Format("2006_01"),
		t.Format("2006_01_02"),
		t.Format("2006_01_02_15"),
	)
	file := fmt.Sprintf("%s_%s_%02d.%s", name, FormatTimestamp(t), subsec, ext)
	return filepath.Join(dir, file)
}

// ParseTimePath recovers the timestamp encoded in a frame filename.
func ParseTimePath(p string) (time.Time, error) {
	base := filepath.Base(p)
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	parts := strings.Split(base, "_")
	// name_YYYY_MM_DD_HH_MM_SS_ss: seven trailing numeric fields.
	if len(parts) < 7 {
		return time.Time{}, errs.Configf("archive", "filename %q does not encode a timestamp", p)
	}
	fields := parts[len(parts)-7:]
	nums := make([]int, 7)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return time.Time{}, errs.Configf("archive", "filename %q does not encode a timestamp", p)
		}
		nums[i] = n
	}
	return time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.Local), nil
}
