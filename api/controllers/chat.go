package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/api/middleware"
	"github.com/nutriplanhq/nutriplan-backend/api/responses"
	"github.com/nutriplanhq/nutriplan-backend/api/validators"
	"github.com/nutriplanhq/nutriplan-backend/internal/chat"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

type chatRequest struct {
	Messages []chat.Message `json:"messages" validate:"required"`
	Stream   bool           `json:"stream"`
}

type chatResponse struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

type chatDelta struct {
	Delta string `json:"delta"`
}

// Chat answers a nutrition conversation. With stream=true the reply goes
// out as Server-Sent Events, one data frame per model delta, closed by a
// [DONE] frame. Otherwise the full reply comes back as one JSON envelope.
func Chat(svc *chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}

		userID := middleware.UserUUIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req chatRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if !req.Stream {
			reply, err := svc.Respond(ctx, userID, req.Messages)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteSuccess(w, chatResponse{Message: reply, Model: svc.Model()})
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		started := false
		err := svc.RespondStream(ctx, userID, req.Messages, func(delta string) error {
			frame, err := json.Marshal(chatDelta{Delta: delta})
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return err
			}
			started = true
			flusher.Flush()
			return nil
		})
		if err != nil {
			// Headers are gone once the first frame flushed; the error
			// has to travel in-band from that point.
			if !started {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Error(ctx, "chat stream aborted", err)
			}
			message := "No pudimos completar la respuesta, intentá de nuevo."
			if typed := pkgerrors.As(err); typed != nil {
				message = typed.Message()
			}
			frame, _ := json.Marshal(map[string]string{"error": message})
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
			return
		}

		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}
