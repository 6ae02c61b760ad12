package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"aegis/engine/errs"
)

// detectRequest is the wire shape both AI endpoints accept (spec §6): the
// caller supplies whichever ref it has, local path or cloud URL.
type detectRequest struct {
	ImageURL  string `json:"imageUrl,omitempty"`
	LocalPath string `json:"localPath,omitempty"`
	CameraID  string `json:"cameraId"`
	EdgeID    string `json:"edgeId"`
}

// detectResponse mirrors Snapshot's per-field pointers so a JSON null or an
// absent key decodes to a nil pointer rather than a zero value.
type detectResponse struct {
	PeopleCount *int     `json:"peopleCount"`
	FireProb    *float64 `json:"fireProb"`
	SmokeProb   *float64 `json:"smokeProb"`
}

// HTTPDetector calls a single JSON POST hazard-detection endpoint (local
// or cloud, spec §6), grounded on capture.HTTPAcquirer's plain net/http
// style. Non-2xx, transport errors, and malformed bodies all surface as a
// plain error, which Fuser treats as a null result for that detector.
type HTTPDetector struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPDetector builds a detector posting to endpoint with the given
// bearer token; client may be nil to use http.DefaultClient (the fuser
// applies its own per-call timeout via context, so no client-level
// timeout is set here).
func NewHTTPDetector(endpoint, apiKey string, client *http.Client) *HTTPDetector {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDetector{Endpoint: endpoint, APIKey: apiKey, Client: client}
}

// Detect posts {imageUrl|localPath, cameraId, edgeId} and parses the
// {peopleCount, fireProb, smokeProb} response (spec §6). imageRef is sent
// as imageUrl when it looks like a URL, otherwise as localPath.
func (d *HTTPDetector) Detect(ctx context.Context, imageRef, cameraID, edgeID string) (*Snapshot, error) {
	if d.Endpoint == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", errs.ErrAI)
	}

	reqBody := detectRequest{CameraID: cameraID, EdgeID: edgeID}
	if looksLikeURL(imageRef) {
		reqBody.ImageURL = imageRef
	} else {
		reqBody.LocalPath = imageRef
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", errs.ErrAI, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", errs.ErrAI, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.APIKey)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: transport: %v", errs.ErrAI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: endpoint returned status %d", errs.ErrAI, resp.StatusCode)
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", errs.ErrAI, err)
	}
	return &Snapshot{PeopleCount: out.PeopleCount, FireProb: out.FireProb, SmokeProb: out.SmokeProb}, nil // types match field-for-field; no conversion needed
}

func looksLikeURL(ref string) bool {
	return len(ref) > 7 && (ref[:7] == "http://" || (len(ref) > 8 && ref[:8] == "https://"))
}
