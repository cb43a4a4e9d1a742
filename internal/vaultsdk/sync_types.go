package vaultsdk

// RemoteFile is one entry of the remote manifest.
type RemoteFile struct {
	Path     string `json:"path"`
	Hash     string `json:"hash"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"`
}

// ManifestParams are the query parameters for the manifest endpoint.
// Date is optional; when set the server scopes the manifest to that day.
type ManifestParams struct {
	Root          string
	Pattern       string
	IncludeBinary bool
	Quick         bool
	Date          string
}

type ManifestResponse struct {
	Files []RemoteFile `json:"files"`
}

// TransferFile is one file payload in a push or pull body. Binary content
// is base64 encoded and flagged with IsBinary.
type TransferFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	IsBinary bool   `json:"is_binary"`
}

type PushParams struct {
	Root  string         `json:"root"`
	Files []TransferFile `json:"files"`
}

// PushResponse carries the authoritative count of files the server
// accepted; it may be less than the number sent.
type PushResponse struct {
	Pushed int `json:"pushed"`
}

type PullParams struct {
	Root  string   `json:"root"`
	Paths []string `json:"paths"`
}

type PullResponse struct {
	Files []TransferFile `json:"files"`
}

type DeleteParams struct {
	Root  string
	Paths []string
}

// DeleteResponse carries the authoritative count of files the server deleted.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// ChangesParams are the query parameters for the incremental changes endpoint.
type ChangesParams struct {
	Root          string
	Since         int64
	Pattern       string
	IncludeBinary bool
}

type ChangesResponse struct {
	Files []RemoteFile `json:"files"`
}
