package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"backend/internal/model"
)

// ExtractorClient talks to the external receipt extraction service:
// one endpoint that turns an uploaded receipt image into structured
// line items, and one that classifies item taxability by name.
type ExtractorClient struct {
	baseURL string
	http    *http.Client
}

func NewExtractorClient(baseURL string) *ExtractorClient {
	return &ExtractorClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

type extractResponse struct {
	Receipt model.Receipt `json:"receipt"`
	Status  string        `json:"status"`
}

// Upload is one multipart part of an extraction request: item images
// go under items_images, the optional totals photo under charges_image.
type Upload struct {
	Field    string
	Filename string
	Reader   io.Reader
}

// Extract uploads the receipt images and returns the extracted snapshot
// plus the extractor's confidence verdict (EXTRACTED or NEEDS_REVIEW).
func (c *ExtractorClient) Extract(ctx context.Context, uploads []Upload) (model.Receipt, string, error) {
	if len(uploads) == 0 {
		return model.Receipt{}, "", fmt.Errorf("no images to extract")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, up := range uploads {
		part, err := mw.CreateFormFile(up.Field, up.Filename)
		if err != nil {
			return model.Receipt{}, "", fmt.Errorf("build multipart body: %w", err)
		}
		if _, err := io.Copy(part, up.Reader); err != nil {
			return model.Receipt{}, "", fmt.Errorf("copy upload into request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return model.Receipt{}, "", fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &body)
	if err != nil {
		return model.Receipt{}, "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Receipt{}, "", fmt.Errorf("call extractor: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return model.Receipt{}, "", fmt.Errorf("extractor: http %d: %s", resp.StatusCode, msg)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Receipt{}, "", fmt.Errorf("decode extractor response: %w", err)
	}
	if out.Status == "" {
		out.Status = model.StatusExtracted
	}
	return out.Receipt, out.Status, nil
}

type classifyRequest struct {
	Items []string `json:"items"`
}

type classifyResponse struct {
	Classifications map[string]string `json:"classifications"`
}

// Classify asks the service to label item names as TAXABLE or
// NON_TAXABLE. Names the service cannot decide are absent from the
// returned map.
func (c *ExtractorClient) Classify(ctx context.Context, names []string) (map[string]string, error) {
	body, _ := json.Marshal(classifyRequest{Items: names})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("classifier: http %d: %s", resp.StatusCode, msg)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return out.Classifications, nil
}
