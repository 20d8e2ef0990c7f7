// Package sizeutil parses and formats human-readable byte sizes, used for
// config fields like cache ceilings and the minimum free disk threshold
// (e.g. "5GiB", "100GB").
package sizeutil

import (
	"fmt"
	"strconv"
	"strings"
)

var units = map[string]int64{
	"B":   1,
	"KB":  1024,
	"KIB": 1024,
	"MB":  1024 * 1024,
	"MIB": 1024 * 1024,
	"GB":  1024 * 1024 * 1024,
	"GIB": 1024 * 1024 * 1024,
	"TB":  1024 * 1024 * 1024 * 1024,
	"TIB": 1024 * 1024 * 1024 * 1024,
}

// ParseSize parses a human-readable size string such as "5GiB" or "1.5MB"
// into a byte count. A bare number is interpreted as bytes.
func ParseSize(sizeStr string) (int64, error) {
	s := strings.TrimSpace(strings.ToUpper(sizeStr))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	var numberPart, unitPart string
	for _, unit := range []string{"KIB", "MIB", "GIB", "TIB", "KB", "MB", "GB", "TB", "B"} {
		if strings.HasSuffix(s, unit) {
			numberPart = strings.TrimSuffix(s, unit)
			unitPart = unit
			break
		}
	}

	if unitPart == "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size format: %s", sizeStr)
		}
		return n, nil
	}

	numberPart = strings.TrimSpace(numberPart)
	number, err := strconv.ParseFloat(numberPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size number: %s", numberPart)
	}

	return int64(number * float64(units[unitPart])), nil
}

// FormatSize formats a byte count as a human-readable string, e.g. "5.0 GiB".
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
