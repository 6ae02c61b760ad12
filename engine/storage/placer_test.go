package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlacerMovesFrameIntoDatePartitionedPath(t *testing.T) {
	base := t.TempDir()
	tempDir := t.TempDir()
	tempPath := filepath.Join(tempDir, "frame.jpg")
	require.NoError(t, os.WriteFile(tempPath, []byte("jpeg bytes"), 0o644))

	fixed := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	p := &Placer{BaseDir: base, Now: func() time.Time { return fixed }}

	placement, err := p.Place("floor1", "cam1", tempPath)
	require.NoError(t, err)

	wantRel := filepath.Join("2026", "03", "05", "floor1", "cam1", "frame.jpg")
	assert.Equal(t, wantRel, placement.RelativePath)
	assert.Equal(t, filepath.Join(base, wantRel), placement.AbsolutePath)

	_, err = os.Stat(tempPath)
	assert.True(t, os.IsNotExist(err), "the source frame must be moved, not copied")

	data, err := os.ReadFile(placement.AbsolutePath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestFolderKeyFormat(t *testing.T) {
	fixed := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	key := FolderKey(fixed, "floor1", "cam1")
	assert.Equal(t, "evacuation_frames/2026/03/05/floor1/cam1", key)
}

type stubUploader struct {
	upload *Upload
	err    error
}

func (s *stubUploader) Upload(ctx context.Context, absolutePath, folderKey string) (*Upload, error) {
	return s.upload, s.err
}

func TestUploadOrNilWithNilUploader(t *testing.T) {
	up, err := UploadOrNil(context.Background(), nil, "/tmp/x.jpg", "folder/key")
	assert.NoError(t, err)
	assert.Nil(t, up)
}

func TestUploadOrNilSuccess(t *testing.T) {
	want := &Upload{URL: "https://cdn/x.jpg", Width: 100, Height: 200}
	up, err := UploadOrNil(context.Background(), &stubUploader{upload: want}, "/tmp/x.jpg", "folder/key")
	require.NoError(t, err)
	assert.Equal(t, want, up)
}

func TestUploadOrNilFailureIsNonFatal(t *testing.T) {
	up, err := UploadOrNil(context.Background(), &stubUploader{err: errors.New("network down")}, "/tmp/x.jpg", "folder/key")
	assert.Error(t, err)
	assert.Nil(t, up)
}
