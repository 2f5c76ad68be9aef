package domain

// Author represents a writer with books in the catalog.
//
// A derived book count is intentionally absent: it is computed from the
// book store at read time so it can never drift from the actual catalog
// contents.
type Author struct {
	Record
	Name string `json:"name"`
	// Born is the birth year. Nil means unknown.
	Born *int `json:"born,omitempty"`
}

// SetBorn replaces the birth year. A nil value clears it.
func (a *Author) SetBorn(year *int) {
	a.Born = year
	a.Touch()
}
