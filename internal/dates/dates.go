// Package dates resolves the trade date a run works on.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the ISO form used in file names, URLs and the email subject.
const Layout = time.DateOnly

// Resolve turns a CLI date argument into YYYY-MM-DD. "today"/"今日" and
// "yesterday"/"昨日" are evaluated at now in loc; anything else must already
// be a valid ISO date.
func Resolve(input string, loc *time.Location, now time.Time) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("trade date must be provided")
	}
	if loc == nil {
		loc = time.Local
	}
	switch strings.ToLower(s) {
	case "today", "今日":
		return now.In(loc).Format(Layout), nil
	case "yesterday", "昨日":
		return now.In(loc).AddDate(0, 0, -1).Format(Layout), nil
	}
	t, err := time.ParseInLocation(Layout, s, loc)
	if err != nil {
		return "", fmt.Errorf("invalid trade date %q: want YYYY-MM-DD or today", input)
	}
	return t.Format(Layout), nil
}
