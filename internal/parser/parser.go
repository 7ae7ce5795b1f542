// Package parser turns Showdown battle logs into model.BattleRecord values.
package parser

import (
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/pable/go-showdown-tracker/internal/model"
)

// ParseLog tokenizes and folds a complete battle log. The record's LogHash is
// the SHA-256 of the text, used as an idempotency key by storage.
func ParseLog(id, text string, logger *slog.Logger) (*model.BattleRecord, error) {
	rec, err := NewBuilder(logger).Build(id, Tokenize(text))
	if err != nil {
		return nil, fmt.Errorf("parse log: %w", err)
	}
	rec.LogHash = fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
	return rec, nil
}
