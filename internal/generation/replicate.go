package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultReplicateURL = "https://api.replicate.com/v1"
	pollInterval        = 2 * time.Second
)

// ReplicateConfig holds configuration for the hosted inference backend.
type ReplicateConfig struct {
	APIToken string
	BaseURL  string
	Model    string // model version identifier
	Timeout  time.Duration
}

// ReplicateBackend runs generation on a Replicate-style prediction API:
// create a prediction, poll it to a terminal state, download the output.
// Progress is derived from the step counter the model writes to its logs.
type ReplicateBackend struct {
	client    *resty.Client
	model     string
	timeout   time.Duration
	pollEvery time.Duration
}

// NewReplicateBackend creates a new backend client.
func NewReplicateBackend(cfg *ReplicateConfig) (*ReplicateBackend, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("replicate: API token is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultReplicateURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(baseURL, "/"))
	client.SetHeader("Authorization", "Token "+cfg.APIToken)
	client.SetHeader("Content-Type", "application/json")

	return &ReplicateBackend{
		client:    client,
		model:     cfg.Model,
		timeout:   timeout,
		pollEvery: pollInterval,
	}, nil
}

type predictionInput struct {
	Image          string  `json:"image"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	NumSteps       int     `json:"num_inference_steps"`
	Strength       float64 `json:"strength"`
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	Logs   string          `json:"logs"`
}

// Generate creates a prediction and polls it until it succeeds or fails.
func (b *ReplicateBackend) Generate(ctx context.Context, req *Request, progress ProgressFunc) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	prompts := buildPrompt(req)

	image := req.SourceURL
	if image == "" {
		image = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.SourceImage)
	}

	createReq := predictionRequest{
		Version: b.model,
		Input: predictionInput{
			Image:          image,
			Prompt:         prompts.Prompt,
			NegativePrompt: prompts.NegativePrompt,
			NumSteps:       req.StepCount,
			Strength:       prompts.Strength,
		},
	}

	var created predictionResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(createReq).
		SetResult(&created).
		Post("/predictions")
	if err != nil {
		return nil, fmt.Errorf("replicate: create prediction: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("replicate: create prediction: status %d: %s", resp.StatusCode(), resp.String())
	}
	if created.ID == "" {
		return nil, fmt.Errorf("replicate: create prediction: response missing id: %s", resp.String())
	}

	final, err := b.poll(ctx, created.ID, req.StepCount, progress)
	if err != nil {
		return nil, err
	}

	outputURL, err := firstOutputURL(final.Output)
	if err != nil {
		return nil, err
	}
	return b.download(ctx, outputURL)
}

func (b *ReplicateBackend) poll(ctx context.Context, id string, stepCount int, progress ProgressFunc) (*predictionResponse, error) {
	lastStep := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.pollEvery):
		}

		var pred predictionResponse
		resp, err := b.client.R().
			SetContext(ctx).
			SetResult(&pred).
			Get("/predictions/" + id)
		if err != nil {
			return nil, fmt.Errorf("replicate: poll prediction: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("replicate: poll prediction: status %d", resp.StatusCode())
		}

		if progress != nil {
			if step, total := parseProgress(pred.Logs, stepCount); step > lastStep {
				lastStep = step
				progress(step, total)
			}
		}

		switch pred.Status {
		case "succeeded":
			return &pred, nil
		case "failed", "canceled":
			msg := pred.Error
			if msg == "" {
				msg = pred.Status
			}
			return nil, fmt.Errorf("replicate: prediction %s: %s", pred.Status, msg)
		}
	}
}

// parseProgress extracts the latest "step/total" counter from the model's
// log output. Returns zero when no counter is present.
func parseProgress(logs string, fallbackTotal int) (int, int) {
	step, total := 0, fallbackTotal
	for _, line := range strings.Split(logs, "\n") {
		var s, t int
		if _, err := fmt.Sscanf(strings.TrimSpace(line), "%d/%d", &s, &t); err == nil && t > 0 {
			step, total = s, t
		}
	}
	return step, total
}

func firstOutputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("replicate: prediction returned no output")
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", fmt.Errorf("replicate: prediction returned empty output")
		}
		return list[0], nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	return "", fmt.Errorf("replicate: unexpected output format")
}

func (b *ReplicateBackend) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("replicate: download output: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("replicate: download output: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
