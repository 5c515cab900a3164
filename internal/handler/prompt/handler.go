package prompt

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	promptModel "github.com/zhouzirui/catalyst/backend/internal/model/prompt"
	"github.com/zhouzirui/catalyst/backend/pkg/utils"
)

// Handler serves the per-mode profiles the client uses for greetings,
// placeholders and suggestion chips.
type Handler struct {
	profiles promptModel.Store
}

func New(profiles promptModel.Store) *Handler {
	return &Handler{profiles: profiles}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profiles", h.handleListProfiles)
}

func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profiles.List())
}
