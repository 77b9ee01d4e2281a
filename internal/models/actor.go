package models

import "github.com/google/uuid"

// Actor is a pre-authorized caller: the workspace a request is scoped to and
// the user acting in it, if known
type Actor struct {
	WorkspaceID uuid.UUID
	UserID      *uuid.UUID
}
