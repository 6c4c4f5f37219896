package usecase

import "errors"

// ErrCollaborator marks a failure of an external collaborator (chain node, trust
// profile, submission). The cause is wrapped alongside it.
var ErrCollaborator = errors.New("collaborator failure")
