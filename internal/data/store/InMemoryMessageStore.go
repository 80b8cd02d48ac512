package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/internal/domain/jobmodel"
)

type InMemoryMessageStore struct {
	chatLock *sync.RWMutex
	chatMap  map[string][]jobmodel.JobPayload
}

func InitMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{
		chatLock: new(sync.RWMutex),
		chatMap:  make(map[string][]jobmodel.JobPayload),
	}
}

func (store *InMemoryMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	_, ok := store.chatMap[chatId]
	return ok
}

func (store *InMemoryMessageStore) saveChatId(id string, conversation jobmodel.JobPayload) {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.chatMap[id] = append(store.chatMap[id], conversation)
	inMemLogger.Info("Saved convo to chat message store", "chatId", id)
}

func (store *InMemoryMessageStore) TrySaveChat(ctx context.Context, id string, conversation jobmodel.JobPayload) error {
	if store.ValidateChatId(ctx, id) == false {
		return nil
	}
	store.saveChatId(id, conversation)
	return nil
}

func (store *InMemoryMessageStore) InitNewChat(ctx context.Context, id string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.chatMap[id] = make([]jobmodel.JobPayload, 0)
	return nil
}

// GetMessageHistory returns the most recent turns as payload JSON, oldest
// first, matching the wire shape of the Redis-backed store.
func (store *InMemoryMessageStore) GetMessageHistory(ctx context.Context, chatId string) (error, []string) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()

	payloads := store.chatMap[chatId]
	if int64(len(payloads)) > config.ChatHistoryTurns {
		payloads = payloads[int64(len(payloads))-config.ChatHistoryTurns:]
	}

	var history []string
	for _, p := range payloads {
		if p.Question == "" && p.Answer == "" {
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			inMemLogger.Error("Error marshalling history entry", "chatId", chatId, "error", err)
			continue
		}
		history = append(history, string(data))
	}
	return nil, history
}
