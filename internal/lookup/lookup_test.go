package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Acta/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenRepo struct{ repo.Memory }

func (*brokenRepo) ListClients(context.Context) ([]string, error) { return nil, errors.New("down") }

func TestClients(t *testing.T) {
	h := &Handler{Repo: repo.NewMemory()}

	for _, body := range []string{`{"name":" Constructii SA "}`, `{"name":"Alfa Beton"}`} {
		rec := httptest.NewRecorder()
		h.AddClient(rec, httptest.NewRequest(http.MethodPost, "/api/user/clients", strings.NewReader(body)))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.GetClients(rec, httptest.NewRequest(http.MethodGet, "/api/user/clients", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"Alfa Beton", "Constructii SA"}, names)
}

func TestConcreteClasses(t *testing.T) {
	h := &Handler{Repo: repo.NewMemory()}

	rec := httptest.NewRecorder()
	h.GetConcreteClasses(rec, httptest.NewRequest(http.MethodGet, "/api/user/concrete-classes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.AddConcreteClass(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"C25/30"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.GetConcreteClasses(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `["C25/30"]`, rec.Body.String())
}

func TestAddRejects(t *testing.T) {
	h := &Handler{Repo: repo.NewMemory()}
	for _, body := range []string{`{`, `{"name":"   "}`, `{"name":"` + strings.Repeat("x", 101) + `"}`} {
		rec := httptest.NewRecorder()
		h.AddConcreteClass(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestListError(t *testing.T) {
	h := &Handler{Repo: &brokenRepo{}}
	rec := httptest.NewRecorder()
	h.GetClients(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
