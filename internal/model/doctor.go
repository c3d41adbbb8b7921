package model

// Doctor is created administratively and never mutated by the waiting room
// itself. Its id scopes every queue, broadcast group and websocket route.
type Doctor struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type CreateDoctorRequest struct {
	Name string `json:"name" binding:"required"`
}
