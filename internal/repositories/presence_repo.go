package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "presence:actor:"
	presenceActorsKey = "presence:actors"
	eventSeqSuffix    = ":events"
)

// heartbeatScript accepts a heartbeat iff its sequence is >= the highest
// accepted so far (ties are idempotent refreshes). A flip to online draws
// the actor's next event sequence in the same atomic step, so a concurrent
// sweep can never observe a half-applied heartbeat and sequence order can
// never invert against flip order. Returns {accepted, eventSeq} where
// eventSeq is 0 when no flip happened.
var heartbeatScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'seq'))
local seq = tonumber(ARGV[1])
if cur and seq < cur then
  return {0, 0}
end
local eseq = 0
if redis.call('HGET', KEYS[1], 'published') ~= 'online' then
  eseq = redis.call('INCR', KEYS[3])
end
redis.call('HSET', KEYS[1], 'seq', seq, 'last_seen', ARGV[2], 'device_ts', ARGV[3], 'published', 'online')
redis.call('SADD', KEYS[2], ARGV[4])
return {1, eseq}
`)

// sweepScript flips one actor's published marker online->offline when the
// last heartbeat is older than the expiry window, drawing the event
// sequence for the flip atomically. Returns that sequence, or 0 when no
// flip happened, so repeated sweeps of an already-offline actor emit
// nothing.
var sweepScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'published') ~= 'online' then
  return 0
end
local last = tonumber(redis.call('HGET', KEYS[1], 'last_seen'))
if last and (tonumber(ARGV[1]) - last) < tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'published', 'offline')
redis.call('SREM', KEYS[2], ARGV[3])
return redis.call('INCR', KEYS[3])
`)

type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

func (r *RedisPresenceRepository) RecordHeartbeat(ctx context.Context, actorID uuid.UUID, seq int64, deviceTS, now time.Time) (HeartbeatResult, error) {
	res, err := heartbeatScript.Run(ctx, r.client,
		[]string{presenceKey(actorID), presenceActorsKey, eventSeqKey(actorID)},
		seq, now.Unix(), deviceTS.Unix(), actorID.String(),
	).Int64Slice()
	if err != nil {
		return HeartbeatResult{}, fmt.Errorf("failed to record heartbeat: %w", err)
	}
	if len(res) != 2 {
		return HeartbeatResult{}, fmt.Errorf("unexpected heartbeat script reply: %v", res)
	}

	return HeartbeatResult{
		Accepted:      res[0] == 1,
		WentOnline:    res[1] > 0,
		EventSequence: res[1],
	}, nil
}

func (r *RedisPresenceRepository) GetRecord(ctx context.Context, actorID uuid.UUID) (*models.PresenceRecord, error) {
	fields, err := r.client.HGetAll(ctx, presenceKey(actorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get presence record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	record := models.PresenceRecord{ActorID: actorID}
	if v, ok := fields["seq"]; ok {
		record.Sequence, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := fields["last_seen"]; ok {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			record.LastSeen = time.Unix(unix, 0)
		}
	}
	if v, ok := fields["device_ts"]; ok {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			record.DeviceTS = time.Unix(unix, 0)
		}
	}

	return &record, nil
}

func (r *RedisPresenceRepository) SweepExpired(ctx context.Context, now time.Time, expiry time.Duration) ([]ExpiredActor, error) {
	members, err := r.client.SMembers(ctx, presenceActorsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked actors: %w", err)
	}

	var expired []ExpiredActor
	for _, member := range members {
		actorID, err := uuid.Parse(member)
		if err != nil {
			// Junk member, drop it from the set.
			r.client.SRem(ctx, presenceActorsKey, member)
			continue
		}

		eventSeq, err := sweepScript.Run(ctx, r.client,
			[]string{presenceKey(actorID), presenceActorsKey, eventSeqKey(actorID)},
			now.Unix(), int64(expiry.Seconds()), member,
		).Int64()
		if err != nil {
			return expired, fmt.Errorf("failed to sweep actor %s: %w", member, err)
		}
		if eventSeq > 0 {
			expired = append(expired, ExpiredActor{ActorID: actorID, EventSequence: eventSeq})
		}
	}

	return expired, nil
}

func presenceKey(actorID uuid.UUID) string {
	return presenceKeyPrefix + actorID.String()
}

func eventSeqKey(actorID uuid.UUID) string {
	return presenceKey(actorID) + eventSeqSuffix
}
