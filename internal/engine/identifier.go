package engine

import (
	"regexp"
	"strings"
)

// identRE restricts table and column names to a safe character set so they
// can be interpolated into SQL after quoting.
var identRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// internalPrefix marks bookkeeping tables that are never synced.
const internalPrefix = "_litesync_"

func validateTable(name string) error {
	if !identRE.MatchString(name) {
		return newIdentifierError("table", name)
	}
	return nil
}

func validateColumn(name string) error {
	if !identRE.MatchString(name) {
		return newIdentifierError("column", name)
	}
	return nil
}

// quote returns a double-quoted identifier with embedded quotes doubled.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// isUserTable reports whether a sqlite_master table participates in sync.
func isUserTable(name string) bool {
	return !strings.HasPrefix(name, "sqlite_") && !strings.HasPrefix(name, internalPrefix)
}
