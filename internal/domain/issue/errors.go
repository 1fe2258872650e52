package issue

import "errors"

var (
	ErrInvalidStatus    = errors.New("invalid issue status")
	ErrAssigneeRequired = errors.New("assignee is required")
)
