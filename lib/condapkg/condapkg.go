// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package condapkg parses conda artifact and channel names.
//
// An artifact path is "subdir/name-version-build.ext" with ext either
// .tar.bz2 or .conda. Package names may contain dashes; version and
// build may not, so the last two dashes split the basename. A channel
// path is "channel" or "channel/label/<label>"; the label defaults to
// main.
package condapkg

import (
	"fmt"
	"path"
	"strings"
	"unicode"
)

// Artifact extensions.
const (
	ExtensionTarBz2 = "tar.bz2"
	ExtensionConda  = "conda"
)

// DefaultLabel is the label of a channel path without "/label/".
const DefaultLabel = "main"

// Artifact is a parsed artifact file name.
type Artifact struct {
	// Subdir is the platform directory, e.g. "linux-64" or "noarch".
	// Empty when parsed with ParseFilename.
	Subdir    string
	Name      string
	Version   string
	Build     string
	Extension string
}

// Filename returns "name-version-build.ext".
func (artifact Artifact) Filename() string {
	return fmt.Sprintf("%s-%s-%s.%s", artifact.Name, artifact.Version, artifact.Build, artifact.Extension)
}

// Path returns "subdir/name-version-build.ext".
func (artifact Artifact) Path() string {
	return path.Join(artifact.Subdir, artifact.Filename())
}

// MatchSpec returns the "name=version=build" spec conda search takes.
func (artifact Artifact) MatchSpec() string {
	return artifact.Name + "=" + artifact.Version + "=" + artifact.Build
}

// ParseFilename parses "name-version-build.ext".
func ParseFilename(filename string) (Artifact, error) {
	var artifact Artifact
	var basename string
	switch {
	case strings.HasSuffix(filename, "."+ExtensionTarBz2):
		basename = strings.TrimSuffix(filename, "."+ExtensionTarBz2)
		artifact.Extension = ExtensionTarBz2
	case strings.HasSuffix(filename, "."+ExtensionConda):
		basename = strings.TrimSuffix(filename, "."+ExtensionConda)
		artifact.Extension = ExtensionConda
	default:
		return Artifact{}, fmt.Errorf("artifact %q: extension must be .tar.bz2 or .conda", filename)
	}
	if strings.Contains(basename, "/") {
		return Artifact{}, fmt.Errorf("artifact %q: file name contains a slash", filename)
	}

	buildAt := strings.LastIndexByte(basename, '-')
	if buildAt <= 0 {
		return Artifact{}, fmt.Errorf("artifact %q: expected name-version-build", filename)
	}
	versionAt := strings.LastIndexByte(basename[:buildAt], '-')
	if versionAt <= 0 {
		return Artifact{}, fmt.Errorf("artifact %q: expected name-version-build", filename)
	}
	artifact.Name = basename[:versionAt]
	artifact.Version = basename[versionAt+1 : buildAt]
	artifact.Build = basename[buildAt+1:]
	if artifact.Version == "" || artifact.Build == "" {
		return Artifact{}, fmt.Errorf("artifact %q: empty version or build", filename)
	}
	return artifact, nil
}

// ParseArtifact parses "subdir/name-version-build.ext".
func ParseArtifact(artifactPath string) (Artifact, error) {
	subdir, filename, found := strings.Cut(artifactPath, "/")
	if !found || subdir == "" {
		return Artifact{}, fmt.Errorf("artifact %q: expected subdir/filename", artifactPath)
	}
	artifact, err := ParseFilename(filename)
	if err != nil {
		return Artifact{}, err
	}
	artifact.Subdir = subdir
	return artifact, nil
}

// SplitLabel splits "channel/label/<label>" into channel and label.
// A channel path without a label has label "main".
func SplitLabel(channelPath string) (channel, label string) {
	channel, label, found := strings.Cut(channelPath, "/label/")
	if !found {
		return channelPath, DefaultLabel
	}
	return channel, label
}

// ChannelArtifact is an artifact in a specific channel and label, as
// written "channel[/label/<label>]/subdir/filename".
type ChannelArtifact struct {
	Channel string
	Label   string
	Artifact
}

// ParseChannelArtifact parses "channel[/label/<label>]/subdir/filename".
func ParseChannelArtifact(reference string) (ChannelArtifact, error) {
	parts := strings.Split(reference, "/")
	if len(parts) < 3 {
		return ChannelArtifact{}, fmt.Errorf("package %q: expected channel/subdir/filename", reference)
	}
	channelPath := strings.Join(parts[:len(parts)-2], "/")
	artifact, err := ParseArtifact(strings.Join(parts[len(parts)-2:], "/"))
	if err != nil {
		return ChannelArtifact{}, fmt.Errorf("package %q: %w", reference, err)
	}
	channel, label := SplitLabel(channelPath)
	if channel == "" || label == "" {
		return ChannelArtifact{}, fmt.Errorf("package %q: empty channel or label", reference)
	}
	return ChannelArtifact{Channel: channel, Label: label, Artifact: artifact}, nil
}

// ChannelPath returns the channel with its label, omitting the
// default label.
func (reference ChannelArtifact) ChannelPath() string {
	if reference.Label == DefaultLabel {
		return reference.Channel
	}
	return reference.Channel + "/label/" + reference.Label
}

// String returns the reference in the form ParseChannelArtifact reads.
func (reference ChannelArtifact) String() string {
	return reference.ChannelPath() + "/" + reference.Path()
}

// ShardedOutputPath returns the location of an output's record in the
// feedstock-outputs registry: outputs/<c0>/<c1>/<c2>/<name>.json where
// c0..c2 are the first three alphanumeric characters of name, padded
// with "z".
func ShardedOutputPath(name string) string {
	shard := make([]string, 0, 3)
	for _, char := range name {
		if len(shard) == 3 {
			break
		}
		if unicode.IsLetter(char) || unicode.IsDigit(char) {
			shard = append(shard, string(char))
		}
	}
	for len(shard) < 3 {
		shard = append(shard, "z")
	}
	return path.Join("outputs", shard[0], shard[1], shard[2], name+".json")
}

// IsGlob reports whether an output name is a glob pattern rather than
// a literal name.
func IsGlob(name string) bool {
	return strings.ContainsAny(name, "*?[]!")
}
