package model

// Persona is the data structure for a person stored in the personas table.
// The Id is the national identifier chosen by the caller. Fields are pointers so that a field
// missing from a request reaches the database as NULL.
type Persona struct {
	Id     *string `json:"id"     db:"id"`
	Name   *string `json:"name"   db:"name"`
	Secret *string `json:"secret" db:"secret"`
	Phone  *string `json:"phone"  db:"phone"`
}
