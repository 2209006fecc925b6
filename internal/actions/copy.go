// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/conda-forge/admin-requests/lib/anaconda"
	"github.com/conda-forge/admin-requests/lib/condapkg"
	"github.com/conda-forge/admin-requests/lib/condatool"
	"github.com/conda-forge/admin-requests/lib/request"
	"github.com/conda-forge/admin-requests/lib/secret"
)

// copyHandler copies reviewed artifacts from another channel into the
// owner channel.
//
//	action: cfep3_copy
//	anaconda_org_packages:
//	  - package: other/label/dev/noarch/foo-1.0-pyh_0.conda
//	    sha256: <64 hex characters>
//	to_anaconda_org_label: main   # optional
type copyHandler struct {
	deps *Deps
}

// copyItem is one parsed anaconda_org_packages entry.
type copyItem struct {
	raw       map[string]any
	reference condapkg.ChannelArtifact
	sha256    string
}

func parseCopyItems(req request.Request) ([]copyItem, error) {
	mappings, err := req.Mappings("anaconda_org_packages")
	if err != nil {
		return nil, fmt.Errorf("%w: anaconda_org_packages must be a list of {package, sha256} mappings", err)
	}
	items := make([]copyItem, 0, len(mappings))
	for index, mapping := range mappings {
		entry := request.Request(mapping)
		pkg, err := entry.String("package")
		if err != nil {
			return nil, fmt.Errorf("anaconda_org_packages[%d]: %w", index, err)
		}
		sum, err := entry.String("sha256")
		if err != nil {
			return nil, fmt.Errorf("anaconda_org_packages[%d]: %w", index, err)
		}
		if !isSHA256(sum) {
			return nil, fmt.Errorf("anaconda_org_packages[%d]: sha256 %q must be 64 hexadecimal characters", index, sum)
		}
		reference, err := condapkg.ParseChannelArtifact(pkg)
		if err != nil {
			return nil, fmt.Errorf("anaconda_org_packages[%d]: %w", index, err)
		}
		items = append(items, copyItem{raw: mapping, reference: reference, sha256: strings.ToLower(sum)})
	}
	return items, nil
}

func isSHA256(value string) bool {
	decoded, err := hex.DecodeString(value)
	return err == nil && len(decoded) == 32
}

func (handler *copyHandler) Check(ctx context.Context, req request.Request) error {
	if _, err := req.OptionalString("to_anaconda_org_label", ""); err != nil {
		return err
	}
	items, err := parseCopyItems(req)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := handler.verify(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// verify checks that the source artifact exists and has the digest the
// requester reviewed.
func (handler *copyHandler) verify(ctx context.Context, item copyItem) error {
	client := handler.deps.Anaconda
	exists, err := client.ChannelArtifactExists(ctx, item.reference)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("package %s does not exist", item.reference)
	}
	distribution, err := client.GetDistribution(ctx, item.reference.Channel, item.reference.Artifact)
	if err != nil {
		return err
	}
	if !digestsEqual(item.sha256, distribution.SHA256) {
		return fmt.Errorf("package %s: sha256 %s does not match %s", item.reference, item.sha256, distribution.SHA256)
	}
	return nil
}

func digestsEqual(want, got string) bool {
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(got))) == 1
}

func (handler *copyHandler) Run(ctx context.Context, req request.Request) (request.Request, error) {
	logger := handler.deps.logger(ActionCFEP3Copy)
	if !handler.deps.Anaconda.CanWrite() {
		logger.Warn("no anaconda.org token, keeping request", "token", secret.ProdBinstarToken)
		return req.Clone(), nil
	}
	toLabel, err := req.OptionalString("to_anaconda_org_label", "")
	if err != nil {
		return nil, err
	}
	items, err := parseCopyItems(req)
	if err != nil {
		return nil, err
	}

	var failed []map[string]any
	for _, item := range items {
		if err := handler.copy(ctx, item, toLabel); err != nil {
			logger.Error("copy failed", "package", item.reference.String(), "error", err)
			failed = append(failed, item.raw)
			continue
		}
		logger.Info("copied package", "package", item.reference.String(), "to", handler.deps.Owner)
	}
	if len(failed) == 0 {
		return nil, nil
	}
	return req.With("anaconda_org_packages", request.MappingsAsAny(failed)), nil
}

func (handler *copyHandler) copy(ctx context.Context, item copyItem, toLabel string) error {
	if err := handler.verify(ctx, item); err != nil {
		return err
	}
	copied, err := handler.alreadyCopied(ctx, item, toLabel)
	if err != nil {
		return err
	}
	if copied {
		return nil
	}
	artifact := item.reference.Artifact
	spec := strings.Join([]string{item.reference.Channel, artifact.Name, artifact.Version, artifact.Subdir, artifact.Filename()}, "/")
	_, err = handler.deps.Tools.Run(ctx, condatool.AnacondaCopy(condatool.CopyOptions{
		Spec:      spec,
		ToOwner:   handler.deps.Owner,
		FromLabel: item.reference.Label,
		ToLabel:   toLabel,
		Token:     handler.deps.Secrets.Value(secret.ProdBinstarToken),
	}))
	return err
}

// alreadyCopied reports whether the owner channel already has the same
// artifact with the target label.
func (handler *copyHandler) alreadyCopied(ctx context.Context, item copyItem, toLabel string) (bool, error) {
	if toLabel == "" {
		toLabel = condapkg.DefaultLabel
	}
	distribution, err := handler.deps.Anaconda.GetDistribution(ctx, handler.deps.Owner, item.reference.Artifact)
	if anaconda.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return digestsEqual(item.sha256, distribution.SHA256) && slices.Contains(distribution.Labels, toLabel), nil
}
