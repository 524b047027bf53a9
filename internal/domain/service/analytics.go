package service

import (
	"context"

	"EdgeScan/internal/domain/models"
)

// EdgeModel is an external predictor returning a 0-100 score and a
// confidence for a symbol given its technical features. Absence of a
// prediction is reported with models.ErrDataUnavailable.
type EdgeModel interface {
	Predict(ctx context.Context, symbol string, features map[string]float64) (models.Prediction, error)
}
