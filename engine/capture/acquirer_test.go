package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAcquirerWritesOneFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fake jpeg bytes"))
	}))
	defer srv.Close()

	outDir := t.TempDir()
	a := NewHTTPAcquirer(2 * time.Second)
	path, err := a.Acquire(context.Background(), srv.URL, "floor1", "cam1", outDir)
	require.NoError(t, err)

	assert.Equal(t, outDir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake jpeg bytes", string(data))
}

func TestHTTPAcquirerCreatesOutDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	outDir := filepath.Join(t.TempDir(), "nested", "dir")
	a := NewHTTPAcquirer(2 * time.Second)
	_, err := a.Acquire(context.Background(), srv.URL, "floor1", "cam1", outDir)
	require.NoError(t, err)

	info, err := os.Stat(outDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestHTTPAcquirerNon2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewHTTPAcquirer(2 * time.Second)
	_, err := a.Acquire(context.Background(), srv.URL, "floor1", "cam1", t.TempDir())
	assert.Error(t, err)
}

func TestHTTPAcquirerTransportFailureIsAnError(t *testing.T) {
	a := NewHTTPAcquirer(2 * time.Second)
	_, err := a.Acquire(context.Background(), "http://127.0.0.1:0/nope", "floor1", "cam1", t.TempDir())
	assert.Error(t, err)
}

func TestStreamURLPrefersExplicit(t *testing.T) {
	got := StreamURL("https://cam.example/stream", "https://fallback/snap", "cam1")
	assert.Equal(t, "https://cam.example/stream", got)
}

func TestStreamURLDerivesFromTemplate(t *testing.T) {
	got := StreamURL("", "https://fallback/snap", "cam1")
	assert.Equal(t, "https://fallback/snap?cameraId=cam1", got)
}
