package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"telegram-shop/bot"
)

type chat struct {
	ID int64 `json:"id"`
}

type message struct {
	MessageID int64  `json:"message_id"`
	Chat      chat   `json:"chat"`
	Text      string `json:"text"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *message `json:"message"`
}

// update is the subset of a Bot API Update the shop reacts to.
type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *message       `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

// Webhook handles POST /webhook. Every update is answered independently.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var upd update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		log.WithError(err).Error("webhook: bad update")
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}
	logger := log.WithField("updateID", upd.UpdateID)

	var (
		chatID string
		reply  bot.Reply
	)
	switch {
	case upd.Message != nil:
		h.countUpdate("message")
		chatID = strconv.FormatInt(upd.Message.Chat.ID, 10)
		reply = h.router.HandleMessage(chatID, upd.Message.Text)
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		h.countUpdate("callback")
		cq := upd.CallbackQuery
		chatID = strconv.FormatInt(cq.Message.Chat.ID, 10)
		reply = h.router.HandleCallback(chatID, cq.Data)

		// clears the loading spinner on the button; not fatal
		if err := h.messenger.AnswerCallback(r.Context(), cq.ID); err != nil {
			logger.WithError(err).Warn("webhook: answer callback failed")
		}
	default:
		h.countUpdate("ignored")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	if err := h.messenger.Send(r.Context(), chatID, reply.Text, reply.Keyboard); err != nil {
		logger.WithError(err).WithField("chatID", chatID).Error("webhook: send reply failed")
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) countUpdate(kind string) {
	if h.metrics != nil {
		h.metrics.BotUpdates.WithLabelValues(kind).Inc()
	}
}
