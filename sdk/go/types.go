package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"rewardkit/core"
	"rewardkit/engine"
)

// Response shapes shared with the server.
type (
	Profile        = engine.Profile
	GrantResult    = engine.GrantResult
	ActivityResult = engine.ActivityResult
	ClaimResult    = engine.ClaimResult
	AwardAllResult = engine.AwardAllResult
	LevelProgress  = core.LevelProgress
	XPEvent        = core.XPEvent
	Notification   = core.Notification
)

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.Status, e.Code, e.Message)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
