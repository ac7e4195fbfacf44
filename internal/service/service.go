// Package service runs the inference pipeline end to end: normalize the raw
// request, interpolate demography at the request location, assemble the
// model's feature vector, predict, and shape the response.
//
// Both artifacts load once at startup and are read-only afterwards, so a
// Service is safe to share and every call is deterministic for identical
// input.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/storeline/siteval-cli/internal/config"
	"github.com/storeline/siteval-cli/internal/faults"
	"github.com/storeline/siteval-cli/internal/geometry"
	"github.com/storeline/siteval-cli/internal/interp"
	"github.com/storeline/siteval-cli/internal/predictor"
	"github.com/storeline/siteval-cli/internal/request"
	"github.com/storeline/siteval-cli/internal/respond"
)

// Service owns the loaded artifacts and serves predictions against them.
type Service struct {
	geo   *geometry.Collection
	model *predictor.Model
}

// New assembles a service from already-loaded artifacts.
func New(geo *geometry.Collection, model *predictor.Model) *Service {
	return &Service{geo: geo, model: model}
}

// Load reads the geometry dataset and the model artifact named by cfg and
// assembles the service. The loads are independent and run concurrently.
// Either failure is a faults.LoadError and must abort startup.
func Load(ctx context.Context, cfg *config.Config) (*Service, error) {
	var (
		geo   *geometry.Collection
		model *predictor.Model
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		geo, err = geometry.Load(gCtx, cfg.Geometry.Path, geometry.LoadOptions{
			Attributes: cfg.Geometry.Attributes,
		})
		return err
	})
	g.Go(func() error {
		var err error
		model, err = predictor.Load(cfg.Model.Path)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("service: ready",
		zap.Int("records", geo.Len()),
		zap.Strings("attributes", geo.Schema()),
		zap.String("model", model.Name),
		zap.String("model_version", model.Version),
	)
	return New(geo, model), nil
}

// Handle serves one raw JSON request through the full pipeline. Rejected
// requests come back as faults errors; the service itself stays healthy.
func (s *Service) Handle(raw []byte) (*respond.Response, error) {
	start := time.Now()
	reqID := uuid.NewString()

	req, err := request.Normalize(raw)
	if err != nil {
		zap.L().Warn("service: request rejected",
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return nil, err
	}

	attrs, err := interp.Interpolate(s.geo, req.Latitude, req.Longitude, req.NeighborsToUse)
	if err != nil {
		zap.L().Warn("service: interpolation rejected",
			zap.String("request_id", reqID),
			zap.Int("neighbors", req.NeighborsToUse),
			zap.Error(err),
		)
		return nil, err
	}

	features, err := s.assemble(req, attrs)
	if err != nil {
		zap.L().Warn("service: request rejected",
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return nil, err
	}

	pred, err := s.model.Predict(features)
	if err != nil {
		// A schema mismatch is a bug in feature assembly or a stale
		// artifact pair, never bad input. Log it louder.
		if faults.IsSchemaMismatch(err) {
			zap.L().Error("service: feature vector does not match model",
				zap.String("request_id", reqID),
				zap.String("model", s.model.Name),
				zap.String("model_version", s.model.Version),
				zap.Error(err),
			)
		} else {
			zap.L().Warn("service: prediction failed",
				zap.String("request_id", reqID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	resp := respond.Format(req, pred)
	zap.L().Info("service: prediction served",
		zap.String("request_id", reqID),
		zap.Int("neighbors", req.NeighborsToUse),
		zap.Float64("square_meters", resp.SquareMeters),
		zap.Float64("predicted_revenue", resp.PredictedRevenue),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// assemble builds the feature vector from request covariates and
// interpolated attributes. Categorical covariates encode through the model's
// level tables; a covariate the model carries no table for is left out, and
// Predict reports any difference against the model schema.
func (s *Service) assemble(req *request.Request, attrs map[string]float64) (map[string]float64, error) {
	features := make(map[string]float64, len(attrs)+8)
	for name, v := range attrs {
		features[name] = v
	}

	features["Latitude"] = req.Latitude
	features["Longitude"] = req.Longitude
	features["LocationSquareFootage"] = req.LocationSquareFootage
	features["HighlyEducated"] = boolToFloat(req.HighlyEducated)
	features["ManyWidows"] = boolToFloat(req.ManyWidows)
	features["LargePopulation"] = boolToFloat(req.LargePopulation)

	addLevel := func(field, value string) error {
		if !s.model.Categorical(field) {
			return nil
		}
		v, err := s.model.Level(field, value)
		if err != nil {
			return err
		}
		features[field] = v
		return nil
	}
	if err := addLevel("PopulationDensity", req.PopulationDensity); err != nil {
		return nil, err
	}
	if err := addLevel("PropBoomers", req.PropBoomers); err != nil {
		return nil, err
	}

	return features, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
