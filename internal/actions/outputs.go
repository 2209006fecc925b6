// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/conda-forge/admin-requests/lib/condapkg"
	"github.com/conda-forge/admin-requests/lib/github"
	"github.com/conda-forge/admin-requests/lib/request"
)

// allowlistPath holds glob patterns a feedstock may register outputs
// for automatically.
const allowlistPath = "feedstock_outputs_autoreg_allowlist.yml"

// outputsHandler registers package outputs to feedstocks in the
// feedstock-outputs repository.
//
//	action: add_feedstock_output
//	feedstock_to_output_mapping:
//	  - foo: libfoo
//	  - foo-feedstock: "foo-plugin-*"
type outputsHandler struct {
	deps *Deps
}

// outputItem is one single-key mapping of the request.
type outputItem struct {
	raw       map[string]any
	feedstock string
	output    string
}

func parseOutputItems(req request.Request) ([]outputItem, error) {
	mappings, err := req.Mappings("feedstock_to_output_mapping")
	if err != nil {
		return nil, err
	}
	items := make([]outputItem, 0, len(mappings))
	for index, mapping := range mappings {
		if len(mapping) != 1 {
			return nil, fmt.Errorf("feedstock_to_output_mapping[%d]: must map exactly one feedstock to one output, got %d keys", index, len(mapping))
		}
		for feedstock, value := range mapping {
			output, ok := value.(string)
			if !ok || output == "" {
				return nil, fmt.Errorf("feedstock_to_output_mapping[%d]: output for %s must be a non-empty string", index, feedstock)
			}
			items = append(items, outputItem{raw: mapping, feedstock: feedstockName(feedstock), output: output})
		}
	}
	return items, nil
}

func (handler *outputsHandler) Check(ctx context.Context, req request.Request) error {
	items, err := parseOutputItems(req)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		if !slices.Contains(names, item.feedstock) {
			names = append(names, item.feedstock)
		}
	}
	return handler.deps.requireFeedstocks(ctx, names)
}

func (handler *outputsHandler) Run(ctx context.Context, req request.Request) (request.Request, error) {
	items, err := parseOutputItems(req)
	if err != nil {
		return nil, err
	}
	logger := handler.deps.logger(ActionAddFeedstockOutput)

	var failed []map[string]any
	for _, item := range items {
		var err error
		if condapkg.IsGlob(item.output) {
			err = handler.addGlob(ctx, item)
		} else {
			err = handler.addOutput(ctx, item)
		}
		if err != nil {
			logger.Error("registering output failed", "feedstock", item.feedstock, "output", item.output, "error", err)
			failed = append(failed, item.raw)
			continue
		}
		logger.Info("registered output", "feedstock", item.feedstock, "output", item.output)
	}
	if len(failed) == 0 {
		return nil, nil
	}
	return req.With("feedstock_to_output_mapping", request.MappingsAsAny(failed)), nil
}

// outputRecord is the JSON stored per output.
type outputRecord struct {
	Feedstocks []string `json:"feedstocks"`
}

func (handler *outputsHandler) addOutput(ctx context.Context, item outputItem) error {
	client := handler.deps.GitHub
	owner, repo := handler.deps.Owner, handler.deps.Repositories.Outputs
	outputPath := condapkg.ShardedOutputPath(item.output)
	message := fmt.Sprintf("[cf admin skip] ***NO_CI*** add output %s for %s/%s-feedstock", item.output, owner, item.feedstock)

	var record outputRecord
	var sha string
	content, err := client.GetContents(ctx, owner, repo, outputPath)
	switch {
	case github.IsNotFound(err):
	case err != nil:
		return err
	default:
		data, err := content.Decode()
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decoding %s: %w", outputPath, err)
		}
		if slices.Contains(record.Feedstocks, item.feedstock) {
			return nil
		}
		sha = content.SHA
	}

	record.Feedstocks = append(record.Feedstocks, item.feedstock)
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = client.PutContents(ctx, owner, repo, outputPath, github.PutContentsRequest{
		Message: message,
		Content: data,
		SHA:     sha,
	})
	return err
}

func (handler *outputsHandler) addGlob(ctx context.Context, item outputItem) error {
	client := handler.deps.GitHub
	owner, repo := handler.deps.Owner, handler.deps.Repositories.Outputs

	content, err := client.GetContents(ctx, owner, repo, allowlistPath)
	if err != nil {
		return err
	}
	data, err := content.Decode()
	if err != nil {
		return err
	}
	document, err := parseYAMLDocument(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", allowlistPath, err)
	}

	globs := lookupNode(document.mapping(), item.feedstock)
	if slices.Contains(nodeStrings(globs), item.output) {
		return nil
	}
	if globs == nil || globs.Kind != yaml.SequenceNode {
		globs = stringsNode(nil)
		setNode(document.mapping(), item.feedstock, globs)
	}
	globs.Content = append(globs.Content, scalarNode(item.output))

	updated, err := document.encode()
	if err != nil {
		return err
	}
	_, err = client.PutContents(ctx, owner, repo, allowlistPath, github.PutContentsRequest{
		Message: fmt.Sprintf("[cf admin skip] ***NO_CI*** add glob %s for %s/%s-feedstock", item.output, owner, item.feedstock),
		Content: updated,
		SHA:     content.SHA,
	})
	return err
}
