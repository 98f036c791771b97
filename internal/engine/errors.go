package engine

import "fmt"

// InvalidManagerStatusError reports a manager candidate whose employment
// status makes them unassignable.
type InvalidManagerStatusError struct {
	UserID string
	Status string
}

func (e InvalidManagerStatusError) Error() string {
	return fmt.Sprintf("user %s cannot manage a project while %s", e.UserID, e.Status)
}

// ProtectedRoleError reports an attempt to revoke the acting project
// manager's own access. Manager access only changes via reassignment.
type ProtectedRoleError struct {
	UserID    string
	ProjectID string
}

func (e ProtectedRoleError) Error() string {
	return fmt.Sprintf("user %s is the manager of project %s; access cannot be revoked", e.UserID, e.ProjectID)
}

// ProjectNotActiveError reports a mutation attempted on a non-active project.
type ProjectNotActiveError struct {
	ProjectID string
	Status    string
}

func (e ProjectNotActiveError) Error() string {
	return fmt.Sprintf("project %s is %s; only active projects can be modified", e.ProjectID, e.Status)
}

// DuplicateIdentifierError reports a custom id collision. Identifier
// generation runs inside the insert transaction, so this surfaces only when
// something else already violated that contract.
type DuplicateIdentifierError struct {
	CustomID string
}

func (e DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("custom id %s already exists", e.CustomID)
}
