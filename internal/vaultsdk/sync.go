package vaultsdk

import (
	"context"
	"strconv"
	"time"

	"github.com/imroc/req/v3"
)

const (
	apiManifest = "/api/sync/manifest"
	apiPush     = "/api/sync/push"
	apiPull     = "/api/sync/pull"
	apiFiles    = "/api/sync/files"
	apiChanges  = "/api/sync/changes"
	apiHealth   = "/api/health"
)

// Per-operation deadlines. Push/pull carry whole file bodies, so they get
// the long one.
const (
	TransferTimeout = 120 * time.Second
	ManifestTimeout = 30 * time.Second
	HealthTimeout   = 5 * time.Second
)

// SyncAPI exposes the remote store's sync surface.
type SyncAPI struct {
	client *req.Client
}

func newSyncAPI(client *req.Client) *SyncAPI {
	return &SyncAPI{
		client: client,
	}
}

// Manifest fetches the remote manifest for a root, optionally scoped to a date.
func (a *SyncAPI) Manifest(ctx context.Context, params *ManifestParams) (*ManifestResponse, error) {
	ctx, cancel := withTimeout(ctx, ManifestTimeout)
	defer cancel()

	var result ManifestResponse
	r := a.client.R().
		SetContext(ctx).
		SetQueryParam("root", params.Root).
		SetQueryParam("pattern", params.Pattern).
		SetQueryParam("include_binary", strconv.FormatBool(params.IncludeBinary)).
		SetQueryParam("quick", strconv.FormatBool(params.Quick)).
		SetSuccessResult(&result).
		SetErrorResult(&APIError{})
	if params.Date != "" {
		r.SetQueryParam("date", params.Date)
	}

	resp, err := r.Get(apiManifest)
	if err := handleAPIError(resp, err, "sync manifest"); err != nil {
		return nil, err
	}

	return &result, nil
}

// Push uploads a batch of files. The response count is authoritative; the
// server may reject a subset.
func (a *SyncAPI) Push(ctx context.Context, params *PushParams) (*PushResponse, error) {
	ctx, cancel := withTimeout(ctx, TransferTimeout)
	defer cancel()

	var result PushResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&result).
		SetErrorResult(&APIError{}).
		Post(apiPush)

	if err := handleAPIError(resp, err, "sync push"); err != nil {
		return nil, err
	}

	return &result, nil
}

// Pull downloads a batch of files by path.
func (a *SyncAPI) Pull(ctx context.Context, params *PullParams) (*PullResponse, error) {
	ctx, cancel := withTimeout(ctx, TransferTimeout)
	defer cancel()

	var result PullResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&result).
		SetErrorResult(&APIError{}).
		Post(apiPull)

	if err := handleAPIError(resp, err, "sync pull"); err != nil {
		return nil, err
	}

	return &result, nil
}

// Delete removes remote files. One request carries the whole path list as
// query parameters.
func (a *SyncAPI) Delete(ctx context.Context, params *DeleteParams) (*DeleteResponse, error) {
	ctx, cancel := withTimeout(ctx, ManifestTimeout)
	defer cancel()

	var result DeleteResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("root", params.Root).
		AddQueryParams("paths", params.Paths...).
		SetSuccessResult(&result).
		SetErrorResult(&APIError{}).
		Delete(apiFiles)

	if err := handleAPIError(resp, err, "sync delete"); err != nil {
		return nil, err
	}

	return &result, nil
}

// Changes fetches files modified since a unix timestamp. Not used by the
// full sync loop; exposed for incremental callers.
func (a *SyncAPI) Changes(ctx context.Context, params *ChangesParams) (*ChangesResponse, error) {
	ctx, cancel := withTimeout(ctx, ManifestTimeout)
	defer cancel()

	var result ChangesResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("root", params.Root).
		SetQueryParam("since", strconv.FormatInt(params.Since, 10)).
		SetQueryParam("pattern", params.Pattern).
		SetQueryParam("include_binary", strconv.FormatBool(params.IncludeBinary)).
		SetSuccessResult(&result).
		SetErrorResult(&APIError{}).
		Get(apiChanges)

	if err := handleAPIError(resp, err, "sync changes"); err != nil {
		return nil, err
	}

	return &result, nil
}

// Health probes the remote store. A nil error means reachable.
func (a *SyncAPI) Health(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, HealthTimeout)
	defer cancel()

	resp, err := a.client.R().
		SetContext(ctx).
		SetErrorResult(&APIError{}).
		Get(apiHealth)

	return handleAPIError(resp, err, "health")
}

// withTimeout applies the per-operation deadline unless the caller already
// set a tighter one.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
