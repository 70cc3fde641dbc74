package util

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike quotes LIKE/ILIKE metacharacters so user input matches literally.
func EscapeLike(value string) string {
	return likeEscaper.Replace(value)
}
