package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/credisync/credisync/internal/hierarchy"
)

// UserDirectory answers supervisor-chain lookups against the central
// user table. It implements hierarchy.Directory; lookup failures bubble
// up as errors and the hierarchy resolver fails closed on them.
type UserDirectory struct {
	client *Client
}

// NewUserDirectory creates a UserDirectory sharing the client's base
// URL and credentials.
func NewUserDirectory(client *Client) *UserDirectory {
	return &UserDirectory{client: client}
}

// directoryRow is the slice of the users table the resolver needs.
type directoryRow struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	SupervisorID string `json:"supervisor_id"`
}

// Supervisor implements hierarchy.Directory.Supervisor.
func (d *UserDirectory) Supervisor(ctx context.Context, userID string) (string, error) {
	params := url.Values{}
	params.Set("id", "eq."+userID)
	params.Set("select", "id,role,supervisor_id")

	rows, err := d.fetch(ctx, params)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].SupervisorID, nil
}

// DirectReports implements hierarchy.Directory.DirectReports.
func (d *UserDirectory) DirectReports(ctx context.Context, supervisorID string) ([]hierarchy.Member, error) {
	params := url.Values{}
	params.Set("supervisor_id", "eq."+supervisorID)
	params.Set("select", "id,role,supervisor_id")

	rows, err := d.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	members := make([]hierarchy.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, hierarchy.Member{ID: row.ID, Role: row.Role})
	}
	return members, nil
}

func (d *UserDirectory) fetch(ctx context.Context, params url.Values) ([]directoryRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.client.tableURL("users", params), nil)
	if err != nil {
		return nil, &Error{Op: "query", Table: "users", Err: err}
	}
	d.client.authorize(req)

	resp, err := d.client.http.Do(req)
	if err != nil {
		return nil, &Error{Op: "query", Table: "users", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "query", Table: "users", Status: resp.StatusCode, Err: errors.New(readErrorBody(resp.Body))}
	}

	var rows []directoryRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &Error{Op: "query", Table: "users", Err: err}
	}
	return rows, nil
}
