package downloadtoken

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/logging"
)

func TestHandler_ServesFileOnceThenRejectsReuse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	store := New(time.Minute, logging.Default())
	token, err := store.Mint(path)
	require.NoError(t, err)

	handler := store.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/files/download?token="+token, nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello world", rec.Body.String())

	req2 := httptest.NewRequest(http.MethodGet, "/api/files/download?token="+token, nil)
	rec2 := httptest.NewRecorder()
	handler(rec2, req2)
	require.Equal(t, http.StatusForbidden, rec2.Code)
}

func TestHandler_RejectsExpiredToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	store := New(time.Millisecond, logging.Default())
	token, err := store.Mint(path)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	handler := store.Handler()
	req := httptest.NewRequest(http.MethodGet, "/api/files/download?token="+token, nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_MissingFileReturns404(t *testing.T) {
	store := New(time.Minute, logging.Default())
	token, err := store.Mint(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)

	handler := store.Handler()
	req := httptest.NewRequest(http.MethodGet, "/api/files/download?token="+token, nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_MissingTokenReturns403(t *testing.T) {
	store := New(time.Minute, logging.Default())
	handler := store.Handler()
	req := httptest.NewRequest(http.MethodGet, "/api/files/download", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSweep_EvictsExpiredUnredeemedTokens(t *testing.T) {
	store := New(time.Millisecond, logging.Default())
	_, err := store.Mint("/tmp/whatever")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	store.sweep()

	require.Empty(t, store.entries)
}
