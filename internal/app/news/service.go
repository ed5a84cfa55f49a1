// Package news aggregates agriculture headlines across a fixed topic
// list and paginates them by client-side offset.
package news

import (
	"context"
	"fmt"

	"github.com/Shivaya007/CROP-AI/internal/domain"
	"github.com/Shivaya007/CROP-AI/internal/observability"
)

// The topic rotation the feed is built from.
var defaultTopics = []string{
	"crop disease outbreaks India",
	"pest infestations India",
	"extreme weather impact on farming India",
	"agriculture policy changes India",
	"new farming techniques India",
	"climate change effects on agriculture India",
	"government subsidies for farmers India",
	"organic farming trends India",
	"market prices for crops India",
	"farmer protests and issues India",
}

type Service struct {
	provider domain.NewsProvider
	topics   []string
}

func NewService(provider domain.NewsProvider) *Service {
	return &Service{
		provider: provider,
		topics:   defaultTopics,
	}
}

// Fetch returns up to count articles starting at offset, in topic
// order. A topic that fails is skipped; the call errors only when
// every topic failed and nothing could be served.
func (s *Service) Fetch(ctx context.Context, offset, count int) ([]*domain.Article, error) {
	if count <= 0 {
		count = 10
	}
	if offset < 0 {
		offset = 0
	}

	log := observability.LoggerFromContext(ctx)

	var (
		all      []*domain.Article
		failures int
	)
	for _, topic := range s.topics {
		articles, err := s.provider.Search(ctx, topic)
		if err != nil {
			failures++
			log.Warn("news topic failed", "topic", topic, "error", err)
			continue
		}
		all = append(all, articles...)
		if len(all) >= offset+count {
			break
		}
	}

	if len(all) == 0 && failures > 0 {
		return nil, fmt.Errorf("news feed unavailable (%d topics failed)", failures)
	}

	if offset >= len(all) {
		return []*domain.Article{}, nil
	}
	end := offset + count
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
