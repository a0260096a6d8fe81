package database

import "time"

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateFormat, s)
}
