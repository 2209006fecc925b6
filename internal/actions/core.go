// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/conda-forge/admin-requests/lib/heroku"
	"github.com/conda-forge/admin-requests/lib/netutil"
	"github.com/conda-forge/admin-requests/lib/request"
)

// coreTeam is the owner organization's team of core members.
const coreTeam = "core"

// anacondaOwnersGroup is the anaconda.org group with owner rights on
// the channel.
const anacondaOwnersGroup = "Owners"

// coreHandler onboards a core member who is already in the GitHub team
// by granting access to the Heroku app and the anaconda.org Owners
// group.
//
//	action: core
//	github: handle
//	heroku: email@example.org   # optional
//	anaconda: username          # optional
type coreHandler struct {
	deps *Deps
}

type coreRequest struct {
	github   string
	heroku   string
	anaconda string
}

func parseCoreRequest(req request.Request) (coreRequest, error) {
	var parsed coreRequest
	var err error
	if parsed.github, err = req.String("github"); err != nil {
		return parsed, err
	}
	if parsed.github == "" {
		return parsed, errors.New(`field "github" must not be empty`)
	}
	if parsed.heroku, err = req.OptionalString("heroku", ""); err != nil {
		return parsed, err
	}
	if parsed.anaconda, err = req.OptionalString("anaconda", ""); err != nil {
		return parsed, err
	}
	return parsed, nil
}

func (handler *coreHandler) Check(ctx context.Context, req request.Request) error {
	parsed, err := parseCoreRequest(req)
	if err != nil {
		return err
	}
	if author := handler.deps.PullRequestAuthor; author != "" && !strings.EqualFold(author, parsed.github) {
		return fmt.Errorf("core requests must be opened by the member: %s opened a request for %s", author, parsed.github)
	}
	for _, rawURL := range handler.deps.CoreListURLs {
		handles, err := handler.fetchHandles(ctx, rawURL)
		if err != nil {
			return err
		}
		for _, handle := range handles {
			if strings.EqualFold(handle, parsed.github) {
				return nil
			}
		}
	}
	return fmt.Errorf("%s is not listed as a core or emeritus member", parsed.github)
}

func (handler *coreHandler) Run(ctx context.Context, req request.Request) (request.Request, error) {
	parsed, err := parseCoreRequest(req)
	if err != nil {
		return nil, err
	}
	deps := handler.deps
	logger := deps.logger(ActionCore).With("github", parsed.github)

	member, err := deps.GitHub.IsTeamMember(ctx, deps.Owner, coreTeam, parsed.github)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%s is not a member of the %s/%s team", parsed.github, deps.Owner, coreTeam)
	}

	residual := request.Request{request.ActionKey: ActionCore, "github": parsed.github}
	if parsed.heroku != "" {
		if err := handler.addHeroku(ctx, parsed.heroku); err != nil {
			logger.Error("adding heroku collaborator failed", "app", deps.HerokuApp, "error", err)
			residual["heroku"] = parsed.heroku
		} else {
			logger.Info("added heroku collaborator", "app", deps.HerokuApp)
		}
	}
	if parsed.anaconda != "" {
		if err := deps.Anaconda.AddGroupMember(ctx, deps.Owner, anacondaOwnersGroup, parsed.anaconda); err != nil {
			logger.Error("adding anaconda.org owner failed", "user", parsed.anaconda, "error", err)
			residual["anaconda"] = parsed.anaconda
		} else {
			logger.Info("added anaconda.org owner", "user", parsed.anaconda)
		}
	}

	if !residual.Has("heroku") && !residual.Has("anaconda") {
		return nil, nil
	}
	return residual, nil
}

func (handler *coreHandler) addHeroku(ctx context.Context, email string) error {
	if handler.deps.Heroku == nil {
		return heroku.ErrNoToken
	}
	return handler.deps.Heroku.AddCollaborator(ctx, handler.deps.HerokuApp, email)
}

// fetchHandles downloads a member list and returns its first column
// without the header row.
func (handler *coreHandler) fetchHandles(ctx context.Context, rawURL string) ([]string, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	response, err := handler.deps.HTTPClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d: %s", rawURL, response.StatusCode, netutil.ErrorBody(response.Body))
	}
	data, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	handles, err := parseHandles(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	return handles, nil
}

func parseHandles(data []byte) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	var handles []string
	for index, record := range records {
		if index == 0 || len(record) == 0 {
			continue
		}
		if handle := strings.TrimSpace(record[0]); handle != "" {
			handles = append(handles, handle)
		}
	}
	return handles, nil
}
