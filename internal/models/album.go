package models

import "time"

// Album is a named, ordered collection of references to FileEntry ids.
// References are not copies: deleting the referenced entry does not remove
// the reference, so read paths must skip ids that no longer resolve.
type Album struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PhotoIDs  []string  `json:"photoIds"`
	CreatedAt time.Time `json:"createdAt"`
}
