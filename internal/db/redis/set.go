package redis

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/mailrag/internal/db"
)

// SAdd adds members in a single command and returns how many were new.
func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	cmd := s.b().Sadd().Key(key).Member(members...).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, opErr(db.OpSAdd, err)
	}
	return n, nil
}

// SIsMember checks membership of a single member.
func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	cmd := s.b().Sismember().Key(key).Member(member).Build()
	ok, err := s.do(ctx, cmd).AsBool()
	if err != nil {
		return false, opErr(db.OpSIsMember, err)
	}
	return ok, nil
}

// SMIsMember checks membership of many members in one round-trip.
func (s *Store) SMIsMember(ctx context.Context, key string, members ...string) ([]bool, error) {
	if len(members) == 0 {
		return nil, nil
	}
	cmd := s.b().Smismember().Key(key).Member(members...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, opErr(db.OpSMIsMember, err)
	}
	if len(raw) != len(members) {
		return nil, &db.Error{
			Op:  db.OpSMIsMember,
			Err: fmt.Errorf("expected %d replies, got %d", len(members), len(raw)),
		}
	}

	out := make([]bool, len(raw))
	for i, m := range raw {
		n, err := m.AsInt64()
		if err != nil {
			return nil, opErr(db.OpSMIsMember, err)
		}
		out[i] = n == 1
	}
	return out, nil
}

// SCard returns the set cardinality. A missing key counts as empty.
func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Scard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, opErr(db.OpSCard, err)
	}
	return n, nil
}
