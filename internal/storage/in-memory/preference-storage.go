package in_memory

import (
	"context"
	"sync"

	"github.com/iamvkosarev/hablaya/internal/model"
)

type PreferenceStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewPreferenceStorage() *PreferenceStorage {
	return &PreferenceStorage{
		values: make(map[string]string),
	}
}

func (p *PreferenceStorage) Get(_ context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	value, ok := p.values[key]
	if !ok {
		return "", model.ErrPreferenceNotFound
	}
	return value, nil
}

func (p *PreferenceStorage) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
	return nil
}
