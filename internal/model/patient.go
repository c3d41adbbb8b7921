package model

import "github.com/google/uuid"

// Patient identity is the UUID token, minted at first join when the client
// does not supply one. The name is whatever the latest join request said.
type Patient struct {
	ID   int64     `db:"id" json:"id"`
	UUID uuid.UUID `db:"uuid" json:"uuid"`
	Name string    `db:"name" json:"name"`
}
