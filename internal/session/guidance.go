package session

import (
	"errors"

	"github.com/iamvkosarev/hablaya/pkg/local"
)

var (
	textPermissionDenied = local.NewSet(
		"Microphone access was denied. Allow microphone access for this page and try again, or type your message.",
		local.NewTrans(
			local.Spa,
			"Se denegó el acceso al micrófono. Permite el acceso al micrófono e inténtalo de nuevo, o escribe tu mensaje.",
		),
	)
	textEmptyRecording = local.NewSet(
		"No audio was captured. Hold the microphone button while you speak.",
		local.NewTrans(local.Spa, "No se grabó audio. Mantén pulsado el botón del micrófono mientras hablas."),
	)
	textUnsupported = local.NewSet(
		"Voice input is not supported here. Please type your message instead.",
		local.NewTrans(local.Spa, "La entrada de voz no está disponible aquí. Por favor, escribe tu mensaje."),
	)
	textCaptureFailed = local.NewSet(
		"Recording failed. Check your microphone and try again.",
		local.NewTrans(local.Spa, "La grabación falló. Revisa tu micrófono e inténtalo de nuevo."),
	)
	textNoTranscript = local.NewSet(
		"Sorry, I couldn't understand the audio. Please try again or type your message.",
		local.NewTrans(local.Spa, "Lo siento, no pude entender el audio. Inténtalo de nuevo o escribe tu mensaje."),
	)
	textChatFailed = local.NewSet(
		"Sorry, there was an error processing your request. Please try again.",
		local.NewTrans(local.Spa, "Lo siento, hubo un error al procesar tu solicitud. Inténtalo de nuevo."),
	)
	textSpeechFailed = local.NewSet(
		"Audio playback is unavailable right now. You can still read the reply.",
		local.NewTrans(local.Spa, "El audio no está disponible ahora mismo. Aún puedes leer la respuesta."),
	)
)

// captureGuidance picks the user-facing text for a local capture failure.
func captureGuidance(err error) local.TextSet {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return textPermissionDenied
	case errors.Is(err, ErrEmptyRecording):
		return textEmptyRecording
	case errors.Is(err, ErrUnsupported):
		return textUnsupported
	default:
		return textCaptureFailed
	}
}
