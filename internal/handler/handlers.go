// Package handler implements the HTTP endpoints Slack calls into.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zozs/a-wild-button-appears/internal/delivery"
	"github.com/zozs/a-wild-button-appears/internal/service"
	"github.com/zozs/a-wild-button-appears/internal/store"
)

// dedupTTL bounds how long an interaction delivery is remembered for retry
// suppression. Slack retries failed deliveries for a few minutes at most.
const dedupTTL = 10 * time.Minute

// Handlers holds the HTTP endpoint implementations.
type Handlers struct {
	recorder *service.ClickRecorder
	tenants  *service.TenantService
	store    store.TenantStore
	cache    store.Cache
	logger   *zap.Logger
}

// NewHandlers creates the endpoint implementations.
func NewHandlers(
	recorder *service.ClickRecorder,
	tenants *service.TenantService,
	tenantStore store.TenantStore,
	cache store.Cache,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		recorder: recorder,
		tenants:  tenants,
		store:    tenantStore,
		cache:    cache,
		logger:   logger,
	}
}

// Root answers a plain readiness string.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "A wild BUTTON appears: API is ready.")
}

// Health reports store connectivity.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Command handles the /wildbutton slash command.
func (h *Handlers) Command(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	tenantID := r.PostFormValue("team_id")
	text := strings.TrimSpace(r.PostFormValue("text"))

	switch text {
	case "stats":
		tenant, err := h.store.GetTenant(r.Context(), tenantID)
		if err != nil {
			h.logger.Error("failed to load tenant for stats",
				zap.String("tenant_id", tenantID),
				zap.Error(err))
			http.Error(w, "failed to load statistics", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, service.StatsMessage(tenant.Events))
	case "help":
		writeJSON(w, http.StatusOK, helpMessage())
	default:
		writeJSON(w, http.StatusOK, usageMessage())
	}
}

// interactionPayload is the subset of Slack's interaction payload we need.
type interactionPayload struct {
	Type string `json:"type"`
	Team struct {
		ID string `json:"id"`
	} `json:"team"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	ResponseURL string `json:"response_url"`
	Actions     []struct {
		ActionID       string `json:"action_id"`
		Value          string `json:"value"`
		ActionTS       string `json:"action_ts"`
		SelectedOption struct {
			Value string `json:"value"`
		} `json:"selected_option"`
		SelectedOptions []struct {
			Value string `json:"value"`
		} `json:"selected_options"`
		SelectedChannel string `json:"selected_channel"`
	} `json:"actions"`
}

// Interactive handles block action payloads: button clicks and settings
// changes.
func (h *Handlers) Interactive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	var payload interactionPayload
	if err := json.Unmarshal([]byte(r.PostFormValue("payload")), &payload); err != nil {
		http.Error(w, "invalid interaction payload", http.StatusBadRequest)
		return
	}

	if payload.Type != "block_actions" || len(payload.Actions) == 0 {
		h.logger.Debug("ignoring unknown interaction payload", zap.String("type", payload.Type))
		http.Error(w, "unsupported payload", http.StatusBadRequest)
		return
	}

	action := payload.Actions[0]
	switch action.ActionID {
	case delivery.ClickActionID:
		h.handleClick(w, payload)
	case "settings_channel":
		h.handleSetting(w, payload.Team.ID, func(ctx context.Context) error {
			return h.tenants.SetChannel(ctx, payload.Team.ID, action.SelectedChannel)
		})
	case "settings_start_time":
		seconds, err := strconv.Atoi(action.SelectedOption.Value)
		if err != nil {
			http.Error(w, "invalid start time", http.StatusBadRequest)
			return
		}
		h.handleSetting(w, payload.Team.ID, func(ctx context.Context) error {
			return h.tenants.SetStartTime(ctx, payload.Team.ID, seconds)
		})
	case "settings_end_time":
		seconds, err := strconv.Atoi(action.SelectedOption.Value)
		if err != nil {
			http.Error(w, "invalid end time", http.StatusBadRequest)
			return
		}
		h.handleSetting(w, payload.Team.ID, func(ctx context.Context) error {
			return h.tenants.SetEndTime(ctx, payload.Team.ID, seconds)
		})
	case "settings_timezone":
		h.handleSetting(w, payload.Team.ID, func(ctx context.Context) error {
			return h.tenants.SetTimezone(ctx, payload.Team.ID, action.SelectedOption.Value)
		})
	case "settings_weekdays":
		weekdays := make([]int, 0, len(action.SelectedOptions))
		for _, option := range action.SelectedOptions {
			day, err := strconv.Atoi(option.Value)
			if err != nil {
				http.Error(w, "invalid weekday", http.StatusBadRequest)
				return
			}
			weekdays = append(weekdays, day)
		}
		h.handleSetting(w, payload.Team.ID, func(ctx context.Context) error {
			return h.tenants.SetWeekdays(ctx, payload.Team.ID, weekdays)
		})
	default:
		h.logger.Debug("ignoring unknown action", zap.String("action_id", action.ActionID))
		http.Error(w, "unsupported action", http.StatusBadRequest)
	}
}

func (h *Handlers) handleClick(w http.ResponseWriter, payload interactionPayload) {
	action := payload.Actions[0]

	timestamp, err := parseSlackTimestamp(action.ActionTS)
	if err != nil {
		http.Error(w, "invalid action timestamp", http.StatusBadRequest)
		return
	}

	// Slack re-delivers interactions it considers failed; a duplicate
	// delivery must not count as a second click attempt.
	dedupKey := fmt.Sprintf("click:%s:%s:%s:%s",
		payload.Team.ID, action.Value, payload.User.ID, action.ActionTS)
	if _, err := h.cache.Get(context.Background(), dedupKey); err == nil {
		h.logger.Debug("suppressing retried click delivery",
			zap.String("tenant_id", payload.Team.ID),
			zap.String("user", payload.User.ID))
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := h.cache.Set(context.Background(), dedupKey, "1", dedupTTL); err != nil {
		h.logger.Warn("failed to store dedup key", zap.Error(err))
	}

	event := service.ClickEvent{
		TenantID:    payload.Team.ID,
		UUID:        action.Value,
		User:        payload.User.ID,
		Timestamp:   timestamp,
		ResponseURL: payload.ResponseURL,
	}

	// Acknowledge before recording; the outcome goes out via the
	// response URL.
	w.WriteHeader(http.StatusOK)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := h.recorder.Record(ctx, event); err != nil {
			h.logger.Error("failed to handle click",
				zap.String("tenant_id", event.TenantID),
				zap.String("uuid", event.UUID),
				zap.String("user", event.User),
				zap.Error(err))
		}
	}()
}

func (h *Handlers) handleSetting(w http.ResponseWriter, tenantID string, apply func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apply(ctx); err != nil {
		h.logger.Error("failed to apply setting",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		http.Error(w, "failed to apply setting", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// parseSlackTimestamp parses a Slack "seconds.fraction" timestamp.
func parseSlackTimestamp(ts string) (time.Time, error) {
	secPart, fracPart, _ := strings.Cut(ts, ".")

	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}

	var nsec int64
	if fracPart != "" {
		padded := (fracPart + "000000000")[:9]
		nsec, err = strconv.ParseInt(padded, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp fraction %q: %w", ts, err)
		}
	}

	return time.Unix(sec, nsec).UTC(), nil
}

func helpMessage() delivery.Message {
	return delivery.Message{
		Text: "*A wild BUTTON appears - _a totally useless Slack bot_*",
		Blocks: []delivery.Block{
			{
				Type: "section",
				Text: &delivery.Text{Type: "mrkdwn", Text: "*A wild BUTTON appears - _a totally useless Slack bot_*"},
			},
			{
				Type: "section",
				Text: &delivery.Text{Type: "mrkdwn", Text: "*Commands*\n`/wildbutton stats`: some wild STATISTICS appears!"},
			},
		},
	}
}

func usageMessage() delivery.Message {
	return delivery.Message{
		Text: "I'm sorry, but I didn't understand you. Use `/wildbutton help` to get help.",
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
