package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"chatrelay.io/ai-chat-server/internal/core"
	"chatrelay.io/ai-chat-server/internal/store"
)

type APIHandler struct {
	userService *core.UserService
	chatService *core.ChatService
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandler(us *core.UserService, cs *core.ChatService, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return &APIHandler{
		userService: us,
		chatService: cs,
		validate:    v,
		logger:      logger.With(slog.String("service", "api")),
	}
}

// decodeRequest reads a JSON body into req and validates it. An empty body is
// treated as an empty object so that it fails validation like missing fields.
func (h *APIHandler) decodeRequest(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				msgs = append(msgs, fe.Field()+" is required")
			} else {
				msgs = append(msgs, fe.Field()+" is invalid")
			}
		}
		return errors.New(strings.Join(msgs, ", "))
	}
	return nil
}

type RegisterUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,contains=@"`
}

type RegisterUserResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func (h *APIHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := h.decodeRequest(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.userService.Register(r.Context(), req.Name, req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RegisterUserResponse{UserID: user.UserID, Name: user.Name, Email: user.Email})
}

type ChatRequest struct {
	Message string `json:"message" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := h.decodeRequest(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	reply, err := h.chatService.Converse(r.Context(), req.UserID, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

type GetMessagesRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type GetMessagesResponse struct {
	Messages []store.ChatLog `json:"messages"`
}

func (h *APIHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	var req GetMessagesRequest
	if err := h.decodeRequest(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	messages, err := h.chatService.History(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GetMessagesResponse{Messages: messages})
}
