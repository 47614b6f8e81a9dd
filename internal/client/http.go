// Package client implements session relays, either against a running
// HablaYa server or in process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/iamvkosarev/hablaya/internal/model"
)

const defaultFilename = "recording.webm"

// HTTPRelays talks to the /api routes of a HablaYa server.
type HTTPRelays struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPRelays(baseURL string, timeout time.Duration) *HTTPRelays {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPRelays{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPRelays) Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	if req.Messages == nil {
		req.Messages = []model.Message{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return model.ChatResponse{}, fmt.Errorf("failed to encode chat request: %w", err)
	}
	resp, err := h.post(ctx, "/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return model.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.ChatResponse{}, decodeError("chat", resp)
	}
	var out model.ChatResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.ChatResponse{}, fmt.Errorf("failed to decode chat response: %w", err)
	}
	return out, nil
}

// Speak returns the whole audio clip; replies are short enough to buffer.
func (h *HTTPRelays) Speak(ctx context.Context, req model.SpeechRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode speech request: %w", err)
	}
	resp, err := h.post(ctx, "/api/speak", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError("speech", resp)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return audio, nil
}

func (h *HTTPRelays) Transcribe(
	ctx context.Context,
	req model.TranscriptionRequest,
) (model.TranscriptionResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	filename := req.Filename
	if filename == "" {
		filename = defaultFilename
	}
	part, err := mw.CreatePart(filePartHeader(filename, req.ContentType))
	if err != nil {
		return model.TranscriptionResult{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err = part.Write(req.Audio); err != nil {
		return model.TranscriptionResult{}, fmt.Errorf("failed to write audio: %w", err)
	}
	for name, value := range map[string]string{"language": req.Language, "prompt": req.Prompt} {
		if value == "" {
			continue
		}
		if err = mw.WriteField(name, value); err != nil {
			return model.TranscriptionResult{}, fmt.Errorf("failed to write %s field: %w", name, err)
		}
	}
	if err = mw.Close(); err != nil {
		return model.TranscriptionResult{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	resp, err := h.post(ctx, "/api/transcribe", mw.FormDataContentType(), &body)
	if err != nil {
		return model.TranscriptionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.TranscriptionResult{}, decodeError("transcription", resp)
	}
	var out model.TranscriptionResult
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.TranscriptionResult{}, fmt.Errorf("failed to decode transcription: %w", err)
	}
	return out, nil
}

func (h *HTTPRelays) post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	return resp, nil
}

func filePartHeader(filename, contentType string) textproto.MIMEHeader {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	return header
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Limit   int    `json:"limit"`
	Length  int    `json:"length"`
}

// decodeError turns a server error body back into the error taxonomy: 4xx
// becomes an InputError, anything else an UpstreamError.
func decodeError(op string, resp *http.Response) error {
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil || body.Error == "" {
		body.Error = fmt.Sprintf("server returned HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &model.InputError{
			Reason:  body.Error,
			Details: body.Details,
			Limit:   body.Limit,
			Length:  body.Length,
		}
	}
	message := body.Error
	if body.Details != "" {
		message = body.Details
	}
	return &model.UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: message}
}
