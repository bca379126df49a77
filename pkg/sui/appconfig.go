package sui

import (
	"context"
	"fmt"

	"github.com/chainsafe/purgatory-reaper/pkg/config"
)

// NewFromAppConfig builds a client from the application's sui section. A
// signer is attached when a private key is configured; with requireSigner
// set a missing key is an error.
func NewFromAppConfig(ctx context.Context, cfg *config.SuiConfig, requireSigner bool, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil sui config")
	}
	if cfg.PrivateKey != "" {
		signer, err := ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("sui.private_key: %w", err)
		}
		opts = append(opts, WithSigner(signer))
	} else if requireSigner {
		return nil, fmt.Errorf("sui.private_key: %w", ErrNoSigner)
	}

	return New(ctx, &Config{
		RPCURL:            cfg.RPCURL,
		PackageID:         cfg.PackageID,
		GlobalPurgatoryID: cfg.GlobalPurgatoryID,
		Module:            cfg.Module,
		ClockObjectID:     cfg.ClockObjectID,
		RequestTimeout:    cfg.RequestTimeout,
	}, opts...)
}
