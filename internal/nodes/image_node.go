package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"dev.helix.agent/internal/apperr"
	"dev.helix.agent/internal/config"
	"dev.helix.agent/internal/domain"
	"dev.helix.agent/internal/streamsink"
)

// ImageNode is C6's image-generation leaf, grounded on the original
// backend's Image/image.py: it forwards the query to an external
// image-generation API and returns a markdown image link.
type ImageNode struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewImageNode builds the image-generation leaf node.
func NewImageNode(cfg config.LLMConfig) *ImageNode {
	return &ImageNode{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

func (n *ImageNode) Route() domain.Route { return domain.RouteImage }

func (n *ImageNode) Run(ctx context.Context, state *domain.GraphState, query string, sink streamsink.Sink) (string, error) {
	if sink != nil {
		sink.Status(string(domain.RouteImage), "processing", "Generating image", 0.2)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"prompt": query,
		"n":      1,
		"size":   "1024x1024",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "build image request", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindProviderUnavailable, "image generation failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.New(apperr.KindProviderUnavailable, fmt.Sprintf("image provider status %d", resp.StatusCode))
	}

	var decoded struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperr.Wrap(apperr.KindParseFailure, "decode image response", err)
	}
	if len(decoded.Data) == 0 {
		return "", apperr.New(apperr.KindParseFailure, "provider returned no image")
	}

	response := fmt.Sprintf("![generated image](%s)", decoded.Data[0].URL)
	if sink != nil {
		sink.Content(string(domain.RouteImage), response, response, false)
	}
	return response, nil
}
