package sync

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/openvault/vaultsync/internal/vaultsdk"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory remote store implementing the sync HTTP surface.
type fakeRemote struct {
	mu    stdsync.Mutex
	files map[string]*fakeFile

	pushRequests   int
	pullRequests   int
	deleteRequests int

	failManifest bool
	failPush     bool

	lastManifestQuery url.Values

	server *httptest.Server
}

type fakeFile struct {
	data     []byte
	modified int64
	binary   bool
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()
	f := &fakeRemote{files: make(map[string]*fakeFile)}
	f.server = httptest.NewServer(f.handler())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRemote) sdk(t *testing.T) *vaultsdk.SDK {
	t.Helper()
	sdk, err := vaultsdk.New(f.server.URL, "", "dev1234")
	require.NoError(t, err)
	return sdk
}

func (f *fakeRemote) put(path string, content string, modified int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = &fakeFile{data: []byte(content), modified: modified}
}

func (f *fakeRemote) putBinary(path string, content []byte, modified int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = &fakeFile{data: content, modified: modified, binary: true}
}

func (f *fakeRemote) get(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[path]
	if !ok {
		return nil, false
	}
	return file.data, true
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/api/sync/manifest", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastManifestQuery = r.URL.Query()
		if f.failManifest {
			writeAPIError(w, http.StatusInternalServerError, "E_INTERNAL_ERROR", "manifest unavailable")
			return
		}
		date := r.URL.Query().Get("date")
		resp := vaultsdk.ManifestResponse{Files: []vaultsdk.RemoteFile{}}
		for path, file := range f.files {
			if date != "" && !strings.Contains(path, date) {
				continue
			}
			resp.Files = append(resp.Files, vaultsdk.RemoteFile{
				Path:     path,
				Hash:     fmt.Sprintf("%x", sha256.Sum256(file.data)),
				Size:     int64(len(file.data)),
				Modified: file.modified,
			})
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/api/sync/push", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.pushRequests++
		if f.failPush {
			writeAPIError(w, http.StatusInternalServerError, "E_INTERNAL_ERROR", "push rejected")
			return
		}
		var params vaultsdk.PushParams
		json.NewDecoder(r.Body).Decode(&params)
		for _, file := range params.Files {
			data := []byte(file.Content)
			if file.IsBinary {
				data, _ = base64.StdEncoding.DecodeString(file.Content)
			}
			f.files[file.Path] = &fakeFile{data: data, modified: time.Now().Unix(), binary: file.IsBinary}
		}
		json.NewEncoder(w).Encode(vaultsdk.PushResponse{Pushed: len(params.Files)})
	})

	mux.HandleFunc("/api/sync/pull", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.pullRequests++
		var params vaultsdk.PullParams
		json.NewDecoder(r.Body).Decode(&params)
		resp := vaultsdk.PullResponse{}
		for _, path := range params.Paths {
			file, ok := f.files[path]
			if !ok {
				continue
			}
			tf := vaultsdk.TransferFile{Path: path, IsBinary: file.binary}
			if file.binary {
				tf.Content = base64.StdEncoding.EncodeToString(file.data)
			} else {
				tf.Content = string(file.data)
			}
			resp.Files = append(resp.Files, tf)
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/api/sync/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.NotFound(w, r)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.deleteRequests++
		deleted := 0
		for _, path := range r.URL.Query()["paths"] {
			if _, ok := f.files[path]; ok {
				delete(f.files, path)
				deleted++
			}
		}
		json.NewEncoder(w).Encode(vaultsdk.DeleteResponse{Deleted: deleted})
	})

	return mux
}

func writeAPIError(w http.ResponseWriter, status int, code, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "error": msg})
}
