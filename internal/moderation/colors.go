package moderation

import "regexp"

// colorCode matches legacy chat formatting codes: a section sign or an
// ampersand followed by a colour or style character.
var colorCode = regexp.MustCompile(`(?i)[§&][0-9a-fk-orx]`)

// StripColors removes chat colour and style codes from s.
func StripColors(s string) string {
	return colorCode.ReplaceAllString(s, "")
}
