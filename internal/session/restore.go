package session

import (
	"context"
	"errors"

	"github.com/DoyleJ11/operator-board/internal/board"
	"github.com/DoyleJ11/operator-board/internal/store"
	"go.uber.org/zap"
)

// Restore builds the board for one profile from kv. Missing state gives an
// empty board. Unreadable state is deleted and also gives an empty board;
// the user sees a fresh grid with no error. The returned board saves every
// mutation back to kv.
func Restore(ctx context.Context, kv store.KV, logger *zap.Logger) *board.Board {
	saver := board.SaverFunc(func(ctx context.Context, data []byte) error {
		return kv.Set(ctx, board.StorageKey, data)
	})

	data, err := kv.Get(ctx, board.StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		return board.New(saver)
	}
	if err != nil {
		logger.Warn("team state unavailable, starting empty", zap.Error(err))
		return board.New(saver)
	}

	b, err := board.Deserialize(data, saver)
	if err != nil {
		logger.Warn("discarding unreadable team state", zap.Error(err), zap.Int("bytes", len(data)))
		if delErr := kv.Delete(ctx, board.StorageKey); delErr != nil {
			logger.Warn("delete unreadable team state", zap.Error(delErr))
		}
		return b
	}
	logger.Debug("team state restored", zap.Int("filled", b.Filled()))
	return b
}
