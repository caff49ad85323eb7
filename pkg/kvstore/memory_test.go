package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) TestGetMissingKey() {
	value, ok, err := s.store.Get(s.ctx, "missing")
	s.Require().NoError(err)
	s.False(ok)
	s.Nil(value)
}

func (s *MemoryStoreSuite) TestSetAndGet() {
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("v"), 0))

	value, ok, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal([]byte("v"), value)
}

func (s *MemoryStoreSuite) TestGetReturnsCopy() {
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("abc"), 0))

	value, _, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	value[0] = 'z'

	again, _, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal([]byte("abc"), again)
}

func (s *MemoryStoreSuite) TestOverwrite() {
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("old"), 0))
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("new"), 0))

	value, ok, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal([]byte("new"), value)
}

func (s *MemoryStoreSuite) TestTTLExpiry() {
	now := time.Now()
	s.store.now = func() time.Time { return now }

	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("v"), time.Minute))

	_, ok, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.True(ok, "value should be readable before expiry")

	s.store.now = func() time.Time { return now.Add(time.Minute) }

	_, ok, err = s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.False(ok, "value should be gone at expiry")
}

func (s *MemoryStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Set(s.ctx, "k", []byte("v"), 0))
	s.Require().NoError(s.store.Delete(s.ctx, "k"))

	_, ok, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.store.Delete(s.ctx, "k"), "deleting a missing key is a no-op")
}
