package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/iamvkosarev/hablaya/internal/usecase"
)

const (
	ReasonInvalidJSON      = "Invalid JSON body"
	ReasonInvalidMultipart = "Invalid multipart form"
	ReasonBodyTooLarge     = "Request body too large"

	multipartMemory = 32 << 20

	// A 4096 character text escapes to at most 48KiB of JSON.
	maxSpeechBodyBytes = 64 << 10
	maxChatBodyBytes   = 1 << 20
)

// chatPayload keeps messages raw so a non-list value can be told apart from
// a list of malformed entries.
type chatPayload struct {
	Messages      json.RawMessage `json:"messages"`
	Model         string          `json:"model"`
	UserLevel     string          `json:"userLevel"`
	LearningFocus string          `json:"learningFocus"`
	SessionData   map[string]any  `json:"sessionData"`
	IsVoiceInput  bool            `json:"isVoiceInput"`
}

type speechPayload struct {
	Text     any      `json:"text"`
	Voice    any      `json:"voice"`
	Speed    *float64 `json:"speed"`
	Emphasis any      `json:"emphasis"`
}

// decodeBody reads a JSON body of at most limit bytes into v. On failure it
// writes the error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(
			w, http.StatusRequestEntityTooLarge, errorBody{
				Error: ReasonBodyTooLarge,
				Limit: int(tooLarge.Limit),
			},
		)
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: ReasonInvalidJSON})
	return false
}

func (s *Server) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload chatPayload
		if !decodeBody(w, r, maxChatBodyBytes, &payload) {
			return
		}
		raw := bytes.TrimSpace(payload.Messages)
		if len(raw) == 0 || raw[0] != '[' {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: usecase.ReasonInvalidMessages})
			return
		}
		var messages []model.Message
		if err := json.Unmarshal(raw, &messages); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: usecase.ReasonInvalidMessages, Details: err.Error()})
			return
		}

		resp, err := s.Chat.Reply(
			r.Context(), model.ChatRequest{
				Messages:      messages,
				Model:         payload.Model,
				UserLevel:     payload.UserLevel,
				LearningFocus: payload.LearningFocus,
				SessionData:   payload.SessionData,
				IsVoiceInput:  payload.IsVoiceInput,
			},
		)
		if err != nil {
			s.writeError(w, r, MessageChatFailed, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleSpeak() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload speechPayload
		if !decodeBody(w, r, maxSpeechBodyBytes, &payload) {
			return
		}
		text, ok := payload.Text.(string)
		if !ok || text == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: usecase.ReasonInvalidText})
			return
		}
		voice, _ := payload.Voice.(string)
		emphasis, _ := payload.Emphasis.(string)

		audio, err := s.Speech.Synthesize(
			r.Context(), model.SpeechRequest{
				Text:     text,
				Voice:    voice,
				Speed:    payload.Speed,
				Emphasis: emphasis,
			},
		)
		if err != nil {
			s.writeError(w, r, MessageSpeechFailed, err)
			return
		}
		defer audio.Body.Close()

		h := w.Header()
		h.Set("Content-Type", audio.ContentType)
		h.Set("Cache-Control", "no-store, max-age=0")
		h.Set("X-Voice-Used", audio.Voice)
		h.Set("X-Speed-Used", strconv.FormatFloat(audio.Speed, 'f', -1, 64))
		h.Set("X-Emphasis-Used", audio.Emphasis)
		w.WriteHeader(http.StatusOK)
		if _, err = io.Copy(w, audio.Body); err != nil {
			s.Logger.WarnContext(r.Context(), "audio stream interrupted", slog.Any("error", err))
		}
	}
}

func (s *Server) handleTranscribe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartMemory)
		}
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: usecase.ReasonAudioTooLarge})
				return
			}
			writeJSON(w, http.StatusBadRequest, errorBody{Error: ReasonInvalidMultipart})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: usecase.ReasonNoAudioFile})
			return
		}
		defer file.Close()

		audio, err := io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: ReasonInvalidMultipart, Details: err.Error()})
			return
		}

		result, err := s.Transcription.Transcribe(
			r.Context(), model.TranscriptionRequest{
				Audio:       audio,
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Language:    r.FormValue("language"),
				Prompt:      r.FormValue("prompt"),
			},
		)
		if err != nil {
			s.writeError(w, r, MessageTranscriptionFailed, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Health.Check(r.Context()))
	}
}
