// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianQA/services/llm"
	"github.com/AleutianAI/AleutianQA/services/testgen/prompt"
)

// FallbackCompleter tries primary and, when it fails with
// ErrGenerationFailed, runs secondary once. Context errors are returned as is.
type FallbackCompleter struct {
	primary   Completer
	secondary Completer
}

// NewFallbackCompleter chains two strategies.
func NewFallbackCompleter(primary, secondary Completer) *FallbackCompleter {
	return &FallbackCompleter{primary: primary, secondary: secondary}
}

// NewCompleter builds the completer for a strategy name.
//
// # Inputs
//
//   - strategy: StrategyAgentic, StrategyDirect or StrategyAuto.
//   - client: The backend shared by every strategy.
//
// # Outputs
//
//   - Completer: The strategy.
//   - error: Non-nil for an unknown strategy or a nil client.
func NewCompleter(strategy string, client llm.Client) (Completer, error) {
	switch strategy {
	case StrategyAgentic:
		agentic, err := NewAgenticCompleter(client, nil)
		if err != nil {
			return nil, err
		}
		return agentic, nil
	case StrategyDirect:
		direct, err := NewDirectCompleter(client)
		if err != nil {
			return nil, err
		}
		return direct, nil
	case StrategyAuto, "":
		agentic, err := NewAgenticCompleter(client, nil)
		if err != nil {
			return nil, err
		}
		direct, err := NewDirectCompleter(client)
		if err != nil {
			return nil, err
		}
		return NewFallbackCompleter(agentic, direct), nil
	default:
		return nil, fmt.Errorf("unknown completion strategy %q", strategy)
	}
}

// Strategy implements Completer.
func (f *FallbackCompleter) Strategy() string { return StrategyAuto }

// Complete implements Completer.
func (f *FallbackCompleter) Complete(ctx context.Context, payload prompt.Payload, opts Options) (*Completion, error) {
	out, err := f.primary.Complete(ctx, payload, opts)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrGenerationFailed) || ctx.Err() != nil {
		return nil, err
	}

	slog.Warn("Primary strategy failed, falling back",
		"primary", f.primary.Strategy(),
		"fallback", f.secondary.Strategy(),
		"error", err)

	out, fallbackErr := f.secondary.Complete(ctx, payload, opts)
	if fallbackErr != nil {
		return nil, fallbackErr
	}
	out.FallbackFrom = f.primary.Strategy()
	return out, nil
}

var _ Completer = (*FallbackCompleter)(nil)
