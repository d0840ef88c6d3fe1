package picto

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-qcm/internal/platform/cache"
)

// RedisStore keeps each language cache in one Redis hash
// (qcm:picto:<lang>), one field per term, so several server instances can
// share resolutions. Inserts go through PutEntry and touch one field.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore on an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// putEntryScript sets one field unless a fuzzy entry would replace a
// strict one already in the hash.
var putEntryScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[1], ARGV[1])
if old and ARGV[3] ~= 'strict' then
  local ok, e = pcall(cjson.decode, old)
  if ok and type(e) == 'table' and e.mode == 'strict' then
    return 0
  end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

func (s *RedisStore) key(lang string) string {
	return cache.Key("picto", lang)
}

// Load skips fields that do not decode.
func (s *RedisStore) Load(ctx context.Context, lang string) (map[string]Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.key(lang)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall picto cache: %w", err)
	}

	entries := make(map[string]Entry, len(fields))
	for term, raw := range fields {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			slog.Warn("skipping undecodable picto cache field", "lang", lang, "term", term, "error", err)
			continue
		}
		entries[term] = e
	}
	return entries, nil
}

// PutEntry writes the field of term. It reports false when a strict entry
// stored by another instance blocks a fuzzy one.
func (s *RedisStore) PutEntry(ctx context.Context, lang, term string, e Entry) (bool, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("marshal entry %q: %w", term, err)
	}
	mode := e.Mode
	if mode == "" {
		mode = ModeFuzzy
	}
	n, err := putEntryScript.Run(ctx, s.client, []string{s.key(lang)}, term, string(data), string(mode)).Int()
	if err != nil {
		return false, fmt.Errorf("put picto entry: %w", err)
	}
	return n == 1, nil
}

// Save replaces the hash atomically. It is used for bulk rewrites; Cache
// inserts go through PutEntry.
func (s *RedisStore) Save(ctx context.Context, lang string, entries map[string]Entry) error {
	values := make([]any, 0, 2*len(entries))
	for term, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry %q: %w", term, err)
		}
		values = append(values, term, string(data))
	}

	key := s.key(lang)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save picto cache: %w", err)
	}
	return nil
}
