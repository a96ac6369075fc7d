package dummychat

import (
	"context"
	"sync"

	"github.com/trezcool/darasa/core"
)

// Service replays canned completions in order and keeps replaying the last
// one. Used in test mode and local development without model credentials.
type Service struct {
	mu        sync.Mutex
	responses [][]byte
	calls     int

	Err error // returned on every call when set
}

var _ core.ChatService = (*Service)(nil)

func NewService(responses ...[]byte) *Service {
	return &Service{responses: responses}
}

func (svc *Service) Complete(_ context.Context, _ core.ChatRequest) ([]byte, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.Err != nil {
		return nil, svc.Err
	}
	if len(svc.responses) == 0 {
		return []byte("{}"), nil
	}
	i := svc.calls
	if i >= len(svc.responses) {
		i = len(svc.responses) - 1
	}
	svc.calls++
	return svc.responses[i], nil
}

// Push appends more canned responses.
func (svc *Service) Push(responses ...[]byte) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.responses = append(svc.responses, responses...)
}

func (svc *Service) Calls() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.calls
}
