package cli

import (
	"fmt"
	"strings"

	"github.com/julianstephens/keel/internal/models"
)

// ShortIDLen is how much of an id list output shows.
const ShortIDLen = 8

// ShortID truncates id for display.
func ShortID(id string) string {
	if len(id) <= ShortIDLen {
		return id
	}
	return id[:ShortIDLen]
}

// MatchID resolves ref against ids. An exact match wins; otherwise ref must
// be the prefix of exactly one id.
func MatchID(ref string, ids []string) (string, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return "", fmt.Errorf("id is required: %w", models.ErrInvalidInput)
	}
	var found []string
	for _, id := range ids {
		if id == ref {
			return id, nil
		}
		if strings.HasPrefix(id, ref) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%s: %w", ref, models.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%s matches %d records: %w", ref, len(found), models.ErrInvalidInput)
	}
}
