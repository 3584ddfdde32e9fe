package scrape

import "regexp"

var emailPattern = regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w+`)

// ExtractEmail returns the first e-mail-shaped substring of text, verbatim.
// It matches shape only; it does not validate deliverability.
func ExtractEmail(text string) (string, bool) {
	m := emailPattern.FindString(text)
	return m, m != ""
}
