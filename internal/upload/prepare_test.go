package upload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/postbot/internal/types"
)

func TestFilePreparerLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	p := NewFilePreparer(t.TempDir())

	got, err := p.Prepare(context.Background(), types.NewAttachment(path, ""))
	require.NoError(t, err)
	require.True(t, got.Prepared)
	require.Equal(t, path, got.LocalPath)

	_, err = p.Prepare(context.Background(), types.NewAttachment(filepath.Join(dir, "nope.png"), ""))
	var perr *PrepareError
	require.ErrorAs(t, err, &perr)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = p.Prepare(context.Background(), types.NewAttachment(dir, ""))
	require.Error(t, err)
}

func TestFilePreparerDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media/cover photo.jpg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("jpeg bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := NewFilePreparer(dir)

	a := types.NewAttachment(srv.URL+"/media/cover%20photo.jpg", "cover")
	got, err := p.Prepare(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.Equal(t, dir, filepath.Dir(got.LocalPath))
	require.Contains(t, filepath.Base(got.LocalPath), "cover_photo.jpg")

	body, err := os.ReadFile(got.LocalPath)
	require.NoError(t, err)
	require.Equal(t, "jpeg bytes", string(body))

	_, err = p.Prepare(context.Background(), types.NewAttachment(srv.URL+"/missing.jpg", ""))
	require.Error(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSafeName(t *testing.T) {
	require.Equal(t, "my_photo_1_.png", SafeName("my photo (1).png"))
	require.Equal(t, "file", SafeName(""))
	require.Equal(t, "ok-name_2.jpg", SafeName("ok-name_2.jpg"))
}
