package mapapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citybuild/maprelay/pkg/mapapi"
)

func TestOwnMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/map", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":7,"name":"Ma Ville","color":"#aabbcc","config":{"grid":12}}`))
	}))
	defer srv.Close()

	c := mapapi.New(srv.URL, time.Second)
	m, err := c.OwnMap(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "7", m.MapID())
	assert.Equal(t, "Ma Ville", m.Name)
	assert.Equal(t, "#aabbcc", m.Color)
}

func TestMapByPseudo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/map/by-pseudo/bob", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"map":{"id":9,"name":"Bobtown","color":"#123456"},"owner":{"pseudo":"bob","xp":42}}`))
	}))
	defer srv.Close()

	c := mapapi.New(srv.URL, time.Second)
	m, err := c.MapByPseudo(context.Background(), "tok", "bob")
	require.NoError(t, err)
	assert.Equal(t, "9", m.MapID())
	assert.Equal(t, "Bobtown", m.Name)
	assert.Equal(t, "bob", m.OwnerPs)
}

func TestAPIErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Joueur introuvable"}`))
	}))
	defer srv.Close()

	c := mapapi.New(srv.URL, time.Second)
	_, err := c.MapByPseudo(context.Background(), "tok", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Joueur introuvable")
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := mapapi.New(srv.URL, time.Second)
	_, err := c.OwnMap(context.Background(), "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
