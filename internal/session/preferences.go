package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/iamvkosarev/hablaya/internal/model"
)

const (
	KeyTheme    = "hablaya-theme"
	KeyVoice    = "hablaya-voice"
	KeySpeed    = "hablaya-speed"
	KeySettings = "hablaya-settings"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

func ParseTheme(s string) (string, bool) {
	switch s {
	case ThemeLight, ThemeDark:
		return s, true
	default:
		return "", false
	}
}

// namespacedStore prefixes every key, giving each user their own slice of a
// shared store.
type namespacedStore struct {
	store  PreferenceStore
	prefix string
}

func Namespace(store PreferenceStore, prefix string) PreferenceStore {
	return namespacedStore{store: store, prefix: prefix}
}

func (n namespacedStore) Get(ctx context.Context, key string) (string, error) {
	return n.store.Get(ctx, n.prefix+key)
}

func (n namespacedStore) Set(ctx context.Context, key, value string) error {
	return n.store.Set(ctx, n.prefix+key, value)
}

type preferences struct {
	Settings model.SessionSettings
	Theme    string
}

// loadPreferences reads everything it can. Missing keys are not errors; the
// returned error joins only real storage or decoding failures.
func loadPreferences(ctx context.Context, store PreferenceStore) (preferences, error) {
	prefs := preferences{
		Settings: model.DefaultSessionSettings(),
		Theme:    ThemeLight,
	}
	var errs []error

	if raw, err := get(ctx, store, KeySettings, &errs); err == nil {
		var settings model.SessionSettings
		if err = json.Unmarshal([]byte(raw), &settings); err != nil {
			errs = append(errs, fmt.Errorf("failed to decode %s: %w", KeySettings, err))
		} else {
			prefs.Settings = settings.Normalize()
		}
	}
	if voice, err := get(ctx, store, KeyVoice, &errs); err == nil && voice != "" {
		prefs.Settings.VoiceID = voice
	}
	if raw, err := get(ctx, store, KeySpeed, &errs); err == nil {
		if speed, err := strconv.ParseFloat(raw, 64); err == nil && speed > 0 {
			prefs.Settings.SpeechRate = speed
		} else {
			errs = append(errs, fmt.Errorf("failed to parse %s %q", KeySpeed, raw))
		}
	}
	if raw, err := get(ctx, store, KeyTheme, &errs); err == nil {
		if theme, ok := ParseTheme(raw); ok {
			prefs.Theme = theme
		}
	}
	return prefs, errors.Join(errs...)
}

func get(ctx context.Context, store PreferenceStore, key string, errs *[]error) (string, error) {
	value, err := store.Get(ctx, key)
	if err != nil && !errors.Is(err, model.ErrPreferenceNotFound) {
		*errs = append(*errs, err)
	}
	return value, err
}

func saveSettings(ctx context.Context, store PreferenceStore, settings model.SessionSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return errors.Join(
		store.Set(ctx, KeySettings, string(raw)),
		store.Set(ctx, KeyVoice, settings.VoiceID),
		store.Set(ctx, KeySpeed, strconv.FormatFloat(settings.SpeechRate, 'f', -1, 64)),
	)
}
