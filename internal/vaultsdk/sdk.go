package vaultsdk

import (
	"fmt"
	"runtime"

	"github.com/imroc/req/v3"
	"github.com/openvault/vaultsync/internal/version"
)

const (
	HeaderUserAgent     = "User-Agent"
	HeaderVaultVersion  = "X-Vault-Version"
	HeaderVaultDeviceID = "X-Vault-Device-Id"
)

var userAgent = fmt.Sprintf("VaultSync/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)

// SDK is the client for the remote vault store HTTP API.
//
// Failed calls are never retried at the HTTP layer: the engine counts a
// failed batch as zero and the next user-triggered sync is the retry
// mechanism.
type SDK struct {
	client  *req.Client
	baseURL string

	Sync *SyncAPI
}

// New creates a new SDK client. apiKey is optional; when set it is sent
// as a bearer token on every request.
func New(baseURL string, apiKey string, deviceID string) (*SDK, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetUserAgent(userAgent).
		SetCommonHeader(HeaderVaultVersion, version.Version).
		SetCommonHeader(HeaderVaultDeviceID, deviceID)

	if apiKey != "" {
		client.SetCommonBearerAuthToken(apiKey)
	}

	return &SDK{
		client:  client,
		baseURL: baseURL,
		Sync:    newSyncAPI(client),
	}, nil
}

// BaseURL returns the configured server URL.
func (s *SDK) BaseURL() string {
	return s.baseURL
}

// Close releases the underlying transport.
func (s *SDK) Close() {
	s.client.GetTransport().CloseIdleConnections()
}
