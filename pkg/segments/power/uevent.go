// Package power provides the battery and backlight segments, both read from
// sysfs.
package power

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Uevent is the parsed key/value content of a power_supply uevent file with
// the POWER_SUPPLY_ prefix removed.
type Uevent map[string]string

// ReadUevent parses the uevent file at path.
func ReadUevent(path string) (Uevent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	u := make(Uevent)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		u[strings.TrimPrefix(k, "POWER_SUPPLY_")] = strings.TrimSpace(v)
	}
	return u, sc.Err()
}

// Float returns the first of keys that parses as a number.
func (u Uevent) Float(keys ...string) (float64, bool) {
	for _, k := range keys {
		if s, ok := u[k]; ok {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}
