package api

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/creation"
	"github.com/eng540/CapitalGuard-Pro-v2-sub000/internal/models"
)

var webhookJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// RecommendationCreator is the narrow slice of internal/creation.Service the
// webhook handler calls into, declared locally per this module's
// no-import-cycle convention.
type RecommendationCreator interface {
	CreateRecommendation(ctx context.Context, in creation.NewRecommendationInput) (*models.Recommendation, error)
}

// createRecommendationRequest is the wire shape the parsing/bot-UI boundary
// posts: a flat analyst-authored signal plus the channels to publish it to.
type createRecommendationRequest struct {
	AnalystID      int64                    `json:"analyst_id"`
	AnalystName    string                   `json:"analyst_name"`
	Symbol         string                   `json:"symbol"`
	Side           models.Side              `json:"side"`
	OrderType      models.OrderType         `json:"order_type"`
	Entry          decimal.Decimal          `json:"entry"`
	StopLoss       decimal.Decimal          `json:"stop_loss"`
	Targets        models.TargetList        `json:"targets"`
	ExitStrategy   models.ExitStrategy      `json:"exit_strategy"`
	ProfitStop     models.ProfitStop        `json:"profit_stop"`
	PublishTargets []createPublishTargetDTO `json:"publish_targets"`
}

type createPublishTargetDTO struct {
	ChannelID   int64  `json:"channel_id"`
	AnalystName string `json:"analyst_name"`
}

type createRecommendationResponse struct {
	ID int64 `json:"id"`
}

// recommendationWebhookHandler decodes and persists one analyst recommendation.
func recommendationWebhookHandler(creator RecommendationCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRecommendationRequest
		if err := webhookJSON.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		targets := make([]creation.PublishTarget, 0, len(req.PublishTargets))
		for _, t := range req.PublishTargets {
			targets = append(targets, creation.PublishTarget{ChannelID: t.ChannelID, AnalystName: t.AnalystName})
		}

		rec, err := creator.CreateRecommendation(r.Context(), creation.NewRecommendationInput{
			AnalystID:      req.AnalystID,
			AnalystName:    req.AnalystName,
			Symbol:         req.Symbol,
			Side:           req.Side,
			OrderType:      req.OrderType,
			Entry:          req.Entry,
			StopLoss:       req.StopLoss,
			Targets:        req.Targets,
			ExitStrategy:   req.ExitStrategy,
			ProfitStop:     req.ProfitStop,
			PublishTargets: targets,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		webhookJSON.NewEncoder(w).Encode(createRecommendationResponse{ID: rec.ID})
	}
}
