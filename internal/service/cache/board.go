package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
)

const boardKey = "edgescan:board:latest"

// BoardStore keeps the latest ranked board as JSON in a BytesCache.
type BoardStore struct {
	c   BytesCache
	ttl time.Duration
}

var _ domrepo.BoardCache = (*BoardStore)(nil)

func NewBoardStore(c BytesCache, ttl time.Duration) *BoardStore {
	return &BoardStore{c: c, ttl: ttl}
}

func (s *BoardStore) PutBoard(ctx context.Context, board models.RankedBoard) error {
	b, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}
	return s.c.SetBytes(ctx, boardKey, b, s.ttl)
}

func (s *BoardStore) LatestBoard(ctx context.Context) (models.RankedBoard, bool, error) {
	b, ok, err := s.c.GetBytes(ctx, boardKey)
	if err != nil || !ok {
		return models.RankedBoard{}, false, err
	}
	var board models.RankedBoard
	if err := json.Unmarshal(b, &board); err != nil {
		return models.RankedBoard{}, false, fmt.Errorf("decode board: %w", err)
	}
	return board, true, nil
}
