package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/transfer"
)

// GenerateService calls the external text-generation API used by the
// composer. Not part of the publish pipeline.
type GenerateService interface {
	Generate(ctx context.Context, req *transfer.GenerateRequest) (*transfer.GenerateResponse, error)
}

type generateService struct {
	cfg    config.Config
	client *http.Client
}

func NewGenerateService(cfg config.Config) GenerateService {
	return &generateService{cfg: cfg, client: http.DefaultClient}
}

func (s *generateService) Generate(ctx context.Context, genReq *transfer.GenerateRequest) (*transfer.GenerateResponse, error) {
	if s.cfg.GenerateAPIURL == "" {
		return nil, errors.New("content generation is not configured")
	}
	if genReq.Topic == "" {
		return nil, errors.New("topic cannot be empty")
	}

	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GenerateAPIURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.GenerateAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation failed: status %d: %s", resp.StatusCode, respBody)
	}

	var result transfer.GenerateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
