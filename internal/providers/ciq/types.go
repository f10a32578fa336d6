package ciq

import (
	"encoding/json"

	"github.com/seenimoa/finsheet/pkg/models"
)

// tokenResponse is the body of the authenticate and refresh endpoints.
type tokenResponse struct {
	AccessToken      string      `json:"access_token"`
	RefreshToken     string      `json:"refresh_token"`
	ExpiresInSeconds json.Number `json:"expires_in_seconds"`
}

// serviceRequest is the client-service batch envelope.
type serviceRequest struct {
	InputRequests []models.AtomicRequest `json:"inputRequests"`
}

// serviceResponse carries one reply per input request, in no fixed order.
type serviceResponse struct {
	GDSSDKResponse []models.RawReplyRow `json:"GDSSDKResponse"`
}
