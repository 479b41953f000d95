package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/models"

	"github.com/rs/zerolog"
)

// ErrRemoteUnreachable reports that connectivity to the remote authority could
// not be established, as opposed to a reply carrying per-item errors.
var ErrRemoteUnreachable = errors.New("remote unreachable")

// Transport sends one ordered batch of mutations in a single network call.
type Transport interface {
	Send(ctx context.Context, batch []models.QueueEntry) (*models.BatchResponse, error)
	CheckConnectivity(ctx context.Context) error
}

// HTTPTransport talks JSON to the remote authority over HTTP.
type HTTPTransport struct {
	baseURL      string
	client       *http.Client
	probeTimeout time.Duration
	log          zerolog.Logger
}

func NewHTTPTransport(cfg config.RemoteConfig, logger *zerolog.Logger) *HTTPTransport {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "transport").Logger()
	}
	return &HTTPTransport{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		client:       &http.Client{Timeout: cfg.RequestTimeout},
		probeTimeout: cfg.ProbeTimeout,
		log:          log,
	}
}

// Send packages the batch with a client timestamp and checksum and posts it.
// Connectivity and protocol failures surface as a single error; a normal reply
// carries one outcome per submitted item.
func (t *HTTPTransport) Send(ctx context.Context, batch []models.QueueEntry) (*models.BatchResponse, error) {
	items := make([]models.BatchItem, 0, len(batch))
	for _, entry := range batch {
		var snapshot models.Task
		if err := json.Unmarshal([]byte(entry.Payload), &snapshot); err != nil {
			return nil, fmt.Errorf("decode payload for entry %s: %w", entry.ID, err)
		}
		items = append(items, models.BatchItem{
			TaskID:     entry.TaskID,
			Operation:  entry.Operation,
			Payload:    snapshot,
			EnqueuedAt: entry.EnqueuedAt,
		})
	}

	request := models.BatchRequest{
		Items:           items,
		ClientTimestamp: time.Now().UTC(),
		Checksum:        Checksum(items),
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("remote rejected batch: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var response models.BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}

	t.log.Debug().Int("items", len(items)).Int("outcomes", len(response.ProcessedItems)).Msg("batch sent")
	return &response, nil
}

// CheckConnectivity probes the remote health endpoint with a short timeout.
func (t *HTTPTransport) CheckConnectivity(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health probe returned status %d", ErrRemoteUnreachable, resp.StatusCode)
	}
	return nil
}
