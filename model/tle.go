package model

// TLE is one two-line element set with its title line.
type TLE struct {
	Name  string
	Line1 string
	Line2 string
}

// CatalogNumber returns the NORAD catalogue number field of line 1.
func (t TLE) CatalogNumber() string {
	if len(t.Line1) < 7 {
		return ""
	}
	return t.Line1[2:7]
}
