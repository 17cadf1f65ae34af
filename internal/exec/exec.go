// Package exec is the Command Executor: a pure function of (typed Command,
// Store handle) to typed Reply. It owns per-command semantics, including
// the BLPop blocking wait (delegated to the Store, which owns the
// condition variable it waits on).
package exec

import (
	"time"

	"github.com/mshaverdo/kvd/internal/command"
	"github.com/mshaverdo/kvd/internal/resp"
	"github.com/mshaverdo/kvd/internal/store"
)

// Execute dispatches cmd against s and returns the Reply to send back.
// Ping and Echo never touch s: they carry no Store-observable state.
func Execute(cmd command.Command, s *store.Store) resp.Reply {
	switch cmd.Kind {
	case command.Ping:
		if cmd.HasMsg {
			return resp.Bulk(cmd.Msg)
		}
		return resp.Simple("PONG")

	case command.Echo:
		return resp.Bulk(cmd.Msg)

	case command.Set:
		var ttl time.Duration
		if cmd.HasTTL {
			ttl = time.Duration(cmd.TTLMillis) * time.Millisecond
		}
		s.Set(cmd.Key, cmd.Value, ttl)
		return resp.Simple("OK")

	case command.Get:
		value, ok, err := s.Get(cmd.Key)
		if err != nil {
			return wrongType(err)
		}
		if !ok {
			return resp.Null()
		}
		return resp.Bulk(value)

	case command.RPush:
		n, err := s.RPush(cmd.Key, cmd.Values)
		if err != nil {
			return wrongType(err)
		}
		return resp.Integer(int64(n))

	case command.LPush:
		n, err := s.LPush(cmd.Key, cmd.Values)
		if err != nil {
			return wrongType(err)
		}
		return resp.Integer(int64(n))

	case command.LRange:
		values, err := s.LRange(cmd.Key, cmd.Start, cmd.Stop)
		if err != nil {
			return wrongType(err)
		}
		return bulkArray(values)

	case command.LLen:
		n, err := s.LLen(cmd.Key)
		if err != nil {
			return wrongType(err)
		}
		return resp.Integer(int64(n))

	case command.LPop:
		values, ok, err := s.LPop(cmd.Key, cmd.Count, cmd.HasCount)
		if err != nil {
			return wrongType(err)
		}
		if !ok {
			return resp.Null()
		}
		if !cmd.HasCount {
			return resp.Bulk(values[0])
		}
		return bulkArray(values)

	case command.BLPop:
		timeout := time.Duration(cmd.TimeoutSeconds * float64(time.Second))
		value, ok, err := s.BLPop(cmd.Key, timeout)
		if err != nil {
			return wrongType(err)
		}
		if !ok {
			return resp.NullArray()
		}
		return resp.Array([]resp.Reply{resp.Bulk(cmd.Key), resp.Bulk(value)})

	case command.Type:
		return resp.Simple(s.Type(cmd.Key))

	case command.Del:
		return resp.Integer(int64(s.Del(cmd.Keys)))

	case command.Exists:
		return resp.Integer(int64(s.Exists(cmd.Keys)))

	case command.Keys:
		matched, err := s.Keys(cmd.Pattern)
		if err != nil {
			return resp.Error(err.Error())
		}
		return bulkArray(matched)

	case command.TTL:
		return resp.Integer(s.TTL(cmd.Key))

	default:
		return resp.Error("internal error: unhandled command")
	}
}

// wrongType renders the Store's fixed WRONGTYPE error as a Reply. The
// sentinel's Error() text already matches the wire protocol's fixed text
// exactly, so no further formatting is needed here.
func wrongType(err error) resp.Reply {
	return resp.Error(err.Error())
}

func bulkArray(values []string) resp.Reply {
	items := make([]resp.Reply, len(values))
	for i, v := range values {
		items[i] = resp.Bulk(v)
	}
	return resp.Array(items)
}
