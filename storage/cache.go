package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"workspace-api/domain"
)

// storeIfCurrent caches a list only while the owner's generation still has
// the value read before the backend was queried. Writes bump the generation,
// so a list read before a write can never land in the cache after it.
var storeIfCurrent = redis.NewScript(`
if (redis.call("GET", KEYS[1]) or "") == ARGV[1] then
	return redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
end
return false
`)

// Cache wraps a Backend with Redis-backed caching of each owner's lists.
// Any write for an owner evicts that owner's entries.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Backend wrapper using the provided Redis client and TTL.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListNotes(ctx context.Context, userID string) ([]domain.Note, error) {
	key := notesCacheKey(userID)
	var notes []domain.Note
	if c.load(ctx, key, &notes) {
		return notes, nil
	}
	gen, ok := c.generation(ctx, key)
	notes, err := c.base.ListNotes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, key, gen, notes)
	}
	return notes, nil
}

func (c *Cache) GetNote(ctx context.Context, userID, id string) (*domain.Note, error) {
	return c.base.GetNote(ctx, userID, id)
}

func (c *Cache) InsertNote(ctx context.Context, n domain.Note) (domain.Note, error) {
	out, err := c.base.InsertNote(ctx, n)
	if err == nil {
		c.evict(ctx, notesCacheKey(n.UserID))
	}
	return out, err
}

func (c *Cache) ReplaceNote(ctx context.Context, userID, id string, r domain.NoteReplace) (*domain.Note, error) {
	out, err := c.base.ReplaceNote(ctx, userID, id, r)
	if err == nil && out != nil {
		c.evict(ctx, notesCacheKey(userID))
	}
	return out, err
}

func (c *Cache) DeleteNote(ctx context.Context, userID, id string) (*domain.Note, error) {
	out, err := c.base.DeleteNote(ctx, userID, id)
	if err == nil && out != nil {
		c.evict(ctx, notesCacheKey(userID))
	}
	return out, err
}

func (c *Cache) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	key := tasksCacheKey(userID)
	var tasks []domain.Task
	if c.load(ctx, key, &tasks) {
		return tasks, nil
	}
	gen, ok := c.generation(ctx, key)
	tasks, err := c.base.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, key, gen, tasks)
	}
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	return c.base.GetTask(ctx, userID, id)
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	out, err := c.base.InsertTask(ctx, t)
	if err == nil {
		c.evict(ctx, tasksCacheKey(t.UserID))
	}
	return out, err
}

func (c *Cache) ReplaceTask(ctx context.Context, userID, id string, r domain.TaskReplace) (*domain.Task, error) {
	out, err := c.base.ReplaceTask(ctx, userID, id, r)
	if err == nil && out != nil {
		c.evict(ctx, tasksCacheKey(userID))
	}
	return out, err
}

func (c *Cache) DeleteTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	out, err := c.base.DeleteTask(ctx, userID, id)
	if err == nil && out != nil {
		c.evict(ctx, tasksCacheKey(userID))
	}
	return out, err
}

func (c *Cache) load(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.ttl == 0 {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			log.WithField("key", key).WithError(err).Debug("cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) generation(ctx context.Context, key string) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	gen, err := c.redis.Get(ctx, generationKey(key)).Result()
	if err == redis.Nil {
		return "", true
	}
	if err != nil {
		log.WithField("key", key).WithError(err).Debug("cache generation read failed")
		return "", false
	}
	return gen, true
}

func (c *Cache) store(ctx context.Context, key, gen string, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	ttl := c.ttl.Milliseconds()
	if ttl < 1 {
		ttl = 1
	}
	err = storeIfCurrent.Run(ctx, c.redis, []string{generationKey(key), key}, gen, data, ttl).Err()
	if err != nil && err != redis.Nil {
		log.WithField("key", key).WithError(err).Debug("cache write failed")
	}
}

// evict bumps the owner's generation and drops the cached list in one
// transaction.
func (c *Cache) evict(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(key))
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		log.WithField("key", key).WithError(err).Warn("cache eviction failed")
	}
}

func notesCacheKey(userID string) string {
	return "notes:" + userID
}

func tasksCacheKey(userID string) string {
	return "tasks:" + userID
}

func generationKey(key string) string {
	return "gen:" + key
}
