// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/url"
)

// TeamMembership is a user's standing in an organization team.
type TeamMembership struct {
	Role  string `json:"role"`
	State string `json:"state"`
}

// IsTeamMember reports whether username is an active member of the
// team identified by org and slug. A pending invitation is not
// membership. Requires read:org on the token for private teams.
func (client *Client) IsTeamMember(ctx context.Context, org, slug, username string) (bool, error) {
	var membership TeamMembership
	path := fmt.Sprintf("/orgs/%s/teams/%s/memberships/%s", org, url.PathEscape(slug), url.PathEscape(username))
	err := client.get(ctx, path, &membership)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s in %s/%s: %w", username, org, slug, err)
	}
	return membership.State == "active", nil
}
