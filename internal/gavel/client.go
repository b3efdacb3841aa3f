// Package gavel talks to the external project-judging platform teams
// are submitted to. All calls are JSON over HTTP with a shared API key;
// any non-2xx response is a failure the caller must handle.
package gavel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Member describes one participant as registered with the platform.
type Member struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// MemberResult is the platform's record of a registered member.
type MemberResult struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// TeamResult is returned when a team is provisioned.
type TeamResult struct {
	TeamID  string         `json:"team_id"`
	Members []MemberResult `json:"members"`
}

// CreateTeamRequest provisions a team with its initial member set.
type CreateTeamRequest struct {
	Members []Member `json:"members"`
	Phone   string   `json:"phone"`
}

// Client is the HTTP client for the platform API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateTeam registers a new team and returns the correlation id plus
// a token for every member.
func (c *Client) CreateTeam(ctx context.Context, req CreateTeamRequest) (*TeamResult, error) {
	var out TeamResult
	if err := c.do(ctx, http.MethodPost, "/api/teams", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddMember registers one more member on an existing team.
func (c *Client) AddMember(ctx context.Context, teamID string, m Member) (*MemberResult, error) {
	var out MemberResult
	if err := c.do(ctx, http.MethodPost, "/api/teams/"+teamID+"/members", m, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveMember deregisters a member from a team.
func (c *Client) RemoveMember(ctx context.Context, teamID, memberID string) error {
	return c.do(ctx, http.MethodDelete, "/api/teams/"+teamID+"/members/"+memberID, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gavel: %s %s returned %d: %s", method, path, resp.StatusCode, msg)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
