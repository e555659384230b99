package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ghost-activity/internal/domain"
)

// runTimeout ограничивает прогон, запущенный через HTTP.
const runTimeout = 5 * time.Minute

type engineRunner interface {
	Trigger(ctx context.Context, now time.Time) (domain.RunSummary, error)
}

// Deps — коллабораторы HTTP-слоя. Audit необязателен.
type Deps struct {
	Engine   engineRunner
	Config   domain.ConfigRepo
	Content  domain.ContentRepo
	Pool     domain.PoolRepo
	Personas domain.PersonaRepo
	Audit    domain.BusinessMetricRepo
}

// Handler обслуживает триггер движка и админские ручки.
type Handler struct {
	deps        Deps
	cronSecret  string
	adminSecret string
	loc         *time.Location
	now         func() time.Time
	log         zerolog.Logger
}

// NewHandler создаёт обработчик. Пустой секрет закрывает соответствующие ручки.
func NewHandler(deps Deps, cronSecret, adminSecret string, loc *time.Location, logger zerolog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		deps:        deps,
		cronSecret:  cronSecret,
		adminSecret: adminSecret,
		loc:         loc,
		now:         time.Now,
		log:         logger,
	}
}

// Register подключает маршруты к роутеру.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/cron/ghost-activity", h.trigger)
	r.Post("/api/cron/ghost-activity", h.trigger)

	r.Route("/api/admin/ghost", func(admin chi.Router) {
		admin.Use(requireSecret(h.adminSecret, "X-Admin-Secret"))
		admin.Get("/status", h.status)
		admin.Delete("/posts/{id}", h.deletePost)
	})
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	if !secretMatches(h.cronSecret, presentedSecret(r, "X-Cron-Secret")) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error().Interface("panic", rec).Msg("api: паника в прогоне движка")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "internal error"})
		}
	}()

	// Обрыв соединения планировщиком не прерывает начатый прогон.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), runTimeout)
	defer cancel()

	summary, err := h.deps.Engine.Trigger(ctx, h.now())
	if err != nil {
		h.log.Error().Err(err).Msg("api: прогон движка завершился ошибкой")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "summary": summary})
}

type statusResponse struct {
	Config         domain.EngineConfig        `json:"config"`
	LocalTime      string                     `json:"local_time"`
	Today          domain.DailyCounts         `json:"today"`
	ActivePersonas int                        `json:"active_personas"`
	PoolUnused     map[domain.Personality]int `json:"pool_unused"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := h.deps.Config.GetEngineConfig(ctx)
	if err != nil {
		h.fail(w, "настройки", err)
		return
	}
	local := h.now().In(h.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, h.loc)
	today, err := h.deps.Content.CountPersonaContent(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		h.fail(w, "счётчики", err)
		return
	}
	personas, err := h.deps.Personas.ListActivePersonas(ctx, "")
	if err != nil {
		h.fail(w, "персоны", err)
		return
	}
	unused, err := h.deps.Pool.CountUnusedPoolItems(ctx, domain.KindPost)
	if err != nil {
		h.fail(w, "пул", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Config:         cfg,
		LocalTime:      local.Format(time.RFC3339),
		Today:          today,
		ActivePersonas: len(personas),
		PoolUnused:     unused,
	})
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || postID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	if err := h.deps.Content.DeletePost(r.Context(), postID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		h.fail(w, "удаление поста", err)
		return
	}
	h.log.Info().Int64("post_id", postID).Msg("api: пост удалён модерацией")
	if h.deps.Audit != nil {
		metric := domain.BusinessMetric{Event: domain.BusinessMetricEventPostReleased, PostID: &postID, OccurredAt: h.now().UTC()}
		if err := h.deps.Audit.RecordBusinessMetric(r.Context(), metric); err != nil {
			h.log.Warn().Err(err).Int64("post_id", postID).Msg("api: не удалось записать метрику удаления")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, what string, err error) {
	h.log.Error().Err(fmt.Errorf("%s: %w", what, err)).Msg("api: ошибка админской ручки")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func requireSecret(expected, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secretMatches(expected, presentedSecret(r, header)) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedSecret(r *http.Request, header string) string {
	if secret := r.Header.Get(header); secret != "" {
		return secret
	}
	return r.URL.Query().Get("secret")
}

// secretMatches сравнивает за постоянное время. Пустой ожидаемый секрет не совпадает ни с чем.
func secretMatches(expected, presented string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
