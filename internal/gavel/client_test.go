package gavel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTeam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/teams", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))

		var req CreateTeamRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Members, 2)

		json.NewEncoder(w).Encode(TeamResult{
			TeamID: "gv-1",
			Members: []MemberResult{
				{ID: "m1", Email: req.Members[0].Email, Token: "t1"},
				{ID: "m2", Email: req.Members[1].Email, Token: "t2"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-123")
	res, err := c.CreateTeam(context.Background(), CreateTeamRequest{
		Members: []Member{{Name: "a", Email: "a@x.io"}, {Name: "b", Email: "b@x.io"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "gv-1", res.TeamID)
	assert.Len(t, res.Members, 2)
}

func TestAddMember(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/teams/gv-1/members", r.URL.Path)
		json.NewEncoder(w).Encode(MemberResult{ID: "m3", Email: "c@x.io", Token: "t3"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-123")
	res, err := c.AddMember(context.Background(), "gv-1", Member{Name: "c", Email: "c@x.io"})
	require.NoError(t, err)
	assert.Equal(t, "t3", res.Token)
}

func TestRemoveMemberNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such member", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-123")
	err := c.RemoveMember(context.Background(), "gv-1", "m9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
