// Package release looks up published releases of the dependency archive and
// compares release versions with the installed one.
package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/itchyny/gojq"

	"github.com/Liiesl/EasyScanlate/pkg/config"
	"github.com/Liiesl/EasyScanlate/pkg/downloader"
)

// LatestTag is the release tag value that asks for the newest release.
const LatestTag = "latest"

// Release is one published release.
type Release struct {
	Tag string
	// Version is nil when the tag is not a semantic version.
	Version *semver.Version
	// AssetURL is the download URL of the configured asset, if the release has it.
	AssetURL string
}

// Immutable
type Resolver struct {
	dl     downloader.Downloader
	remote config.RemoteSettings
}

// NewResolver creates a resolver for the configured repository. API requests
// go through dl; nil means the default downloader.
func NewResolver(remote config.RemoteSettings, dl downloader.Downloader) *Resolver {
	if dl == nil {
		dl = downloader.NewDefaultDownloader()
	}
	return &Resolver{dl: dl, remote: remote}
}

// Latest fetches the newest release from the hosting API.
func (r *Resolver) Latest(ctx context.Context) (*Release, error) {
	if r.remote.Owner == "" || r.remote.Repo == "" {
		return nil, fmt.Errorf("release lookup needs remote.owner and remote.repo")
	}
	uri := fmt.Sprintf("%s/repos/%s/%s/releases/latest",
		strings.TrimRight(r.remote.APIBaseURL, "/"), r.remote.Owner, r.remote.Repo)

	slog.Debug("Looking up latest release", "url", uri)
	data, err := r.get(ctx, uri)
	if err != nil {
		return nil, err
	}

	tag, err := queryString(ctx, r.remote.TagQuery, data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read release tag: %w", err)
	}
	if tag == "" {
		return nil, fmt.Errorf("release response has no tag")
	}

	rel := &Release{Tag: tag, Version: ParseVersion(tag)}
	if r.remote.AssetName != "" && r.remote.AssetQuery != "" {
		asset, err := queryString(ctx, r.remote.AssetQuery, data, map[string]any{"$asset": r.remote.AssetName})
		if err != nil {
			return nil, fmt.Errorf("failed to read asset url: %w", err)
		}
		rel.AssetURL = asset
	}
	return rel, nil
}

// ArchiveURL returns the dependency archive URL for the configured tag,
// resolving "latest" through the hosting API.
func (r *Resolver) ArchiveURL(ctx context.Context) (string, error) {
	tag := r.remote.ReleaseTag
	if tag != "" && tag != LatestTag {
		return r.remote.ArchiveURLFor(tag), nil
	}
	if !strings.Contains(r.remote.ArchiveURL, "{tag}") {
		return r.remote.ArchiveURL, nil
	}
	rel, err := r.Latest(ctx)
	if err != nil {
		return "", err
	}
	if rel.AssetURL != "" {
		return rel.AssetURL, nil
	}
	return r.remote.ArchiveURLFor(rel.Tag), nil
}

func (r *Resolver) get(ctx context.Context, uri string) (any, error) {
	var buf bytes.Buffer
	if err := r.dl.Download(ctx, uri, &buf, nil); err != nil {
		return nil, fmt.Errorf("release lookup failed: %w", err)
	}
	var data any
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		return nil, fmt.Errorf("invalid release response: %w", err)
	}
	return data, nil
}

// queryString runs a jq query and returns its first string result, or "".
func queryString(ctx context.Context, query string, data any, vars map[string]any) (string, error) {
	q, err := gojq.Parse(query)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(vars))
	values := make([]any, 0, len(vars))
	for k, v := range vars {
		names = append(names, k)
		values = append(values, v)
	}
	code, err := gojq.Compile(q, gojq.WithVariables(names))
	if err != nil {
		return "", err
	}

	iter := code.RunWithContext(ctx, data, values...)
	for {
		res, ok := iter.Next()
		if !ok {
			return "", nil
		}
		if err, ok := res.(error); ok {
			return "", err
		}
		if s, ok := res.(string); ok && s != "" {
			return s, nil
		}
	}
}

// ParseVersion parses a tag such as "v1.2.0"; it returns nil when the tag is
// not a version.
func ParseVersion(tag string) *semver.Version {
	v, err := semver.NewVersion(strings.TrimSpace(tag))
	if err != nil {
		return nil
	}
	return v
}
