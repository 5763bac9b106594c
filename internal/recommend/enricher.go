// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package recommend

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PriceEnricher fills current price, store and chain for predictions.
type PriceEnricher struct {
	prices      PriceRepository
	concurrency int
	logger      zerolog.Logger
}

// NewPriceEnricher creates an enricher running at most concurrency lookups at once.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPriceEnricher(prices PriceRepository, concurrency int, logger zerolog.Logger) *PriceEnricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PriceEnricher{
		prices:      prices,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "price_enricher").Logger(),
	}
}

// Enrich sets price fields in place. Lookups that miss, fail or are
// rejected by the breaker leave the fields nil; Enrich never fails.
func (p *PriceEnricher) Enrich(ctx context.Context, predictions []ItemPrediction) {
	if p.prices == nil || len(predictions) == 0 {
		return
	}

	// Workers report misses by leaving fields nil and never return an
	// error, so gctx is only cancelled with the parent.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i := range predictions {
		code := predictions[i].Code()
		if code == "" {
			continue
		}
		pred := &predictions[i]
		g.Go(func() error {
			price, err := p.prices.BestActivePrice(gctx, code)
			if err != nil {
				p.logger.Debug().Err(err).Str("item_code", code).Msg("price lookup failed")
				return nil
			}
			if price == nil {
				return nil
			}
			amount, store, chain := price.Price, price.StoreName, price.ChainName
			pred.CurrentPrice = &amount
			pred.StoreName = &store
			pred.ChainName = &chain
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn().Err(err).Msg("price enrichment stopped early")
	}
}
