package tables

import (
	"github.com/poiesic/gentable/core"
)

// Resolve maps a table identity to the locator of its kind's storage.
func Resolve(root string, id core.TableIdentity) (core.Locator, error) {
	if err := core.ValidateIdentity(id); err != nil {
		return core.Locator{}, err
	}
	return core.Locator{Root: root, OrgID: id.OrgID, ProjectID: id.ProjectID, Kind: id.Kind}, nil
}

// FileLocator returns the locator of a project's file table.
func FileLocator(root, orgID, projectID string) (core.Locator, error) {
	for _, part := range []string{orgID, projectID} {
		if err := core.ValidateIdentifier(part); err != nil {
			return core.Locator{}, err
		}
	}
	return core.Locator{Root: root, OrgID: orgID, ProjectID: projectID, Kind: core.KindFile}, nil
}

// KindLocator returns the locator of one generative kind's tables in a
// project.
func KindLocator(root, orgID, projectID string, kind core.TableKind) (core.Locator, error) {
	loc, err := FileLocator(root, orgID, projectID)
	if err != nil {
		return core.Locator{}, err
	}
	if _, err := New(kind, loc); err != nil {
		return core.Locator{}, err
	}
	loc.Kind = kind
	return loc, nil
}
