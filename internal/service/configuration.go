package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/agentmcp/internal/domain"
)

func (s *Service) ListConfigurations(ctx context.Context) ([]domain.Configuration, error) {
	cfgs, err := s.store.ListConfigurations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list configuration: %w", err)
	}
	return cfgs, nil
}

func (s *Service) GetConfiguration(ctx context.Context, key string) (*domain.Configuration, error) {
	cfg, err := s.store.GetConfiguration(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration %s: %w", key, domain.ErrNotFound)
	}
	return cfg, nil
}

func (s *Service) CreateConfiguration(ctx context.Context, req *domain.ConfigurationRequest) (*domain.Configuration, error) {
	if req.Key == "" || req.Value == nil {
		return nil, fmt.Errorf("missing required fields: key, value: %w", domain.ErrInvalidInput)
	}
	now := s.now()
	cfg := &domain.Configuration{
		Key:       req.Key,
		Value:     *req.Value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Description != nil {
		cfg.Description = *req.Description
	}
	if err := s.store.CreateConfiguration(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to create configuration: %w", err)
	}
	s.logger.Info("configuration created", "key", cfg.Key)
	return cfg, nil
}

// UpdateConfiguration sets value and/or description of an existing key.
func (s *Service) UpdateConfiguration(ctx context.Context, key string, req *domain.ConfigurationRequest) (*domain.Configuration, error) {
	ok, err := s.store.UpdateConfiguration(ctx, key, req.Value, req.Description, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update configuration: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("configuration %s: %w", key, domain.ErrNotFound)
	}
	return s.GetConfiguration(ctx, key)
}
