package bank

import (
	"regexp"
	"strings"

	"quizbot/internal/domain"
)

var idPattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// NormalizeID turns an uploaded file name or user-typed name into a bank id:
// lowercase, spaces as underscores, no .csv suffix.
func NormalizeID(name string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.TrimSuffix(id, ".csv")
	if id == "" || strings.HasPrefix(id, ".") || !idPattern.MatchString(id) {
		return "", domain.ErrInvalidBankID
	}
	return id, nil
}
