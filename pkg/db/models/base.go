package models

import "github.com/google/uuid"

// assignID fills a missing primary key; postgres would default it but sqlite cannot.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
