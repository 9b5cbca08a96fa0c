package cache

import (
	"context"
	"sync"

	"github.com/voxhall/voxhall/internal/services/auth/token"
	"github.com/voxhall/voxhall/internal/services/chat/storage"
)

// fakeKV is an in-memory KV with operation counters for asserting
// read-through behavior.
type fakeKV struct {
	mu      sync.Mutex
	values  map[string]string
	gets    int
	sets    int
	deletes int
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string]string)}
}

func (kv *fakeKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.gets++
	value, found := kv.values[key]
	return value, found, nil
}

func (kv *fakeKV) Set(_ context.Context, key string, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.sets++
	kv.values[key] = value
	return nil
}

func (kv *fakeKV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.deletes++
	delete(kv.values, key)
	return nil
}

func (kv *fakeKV) has(key string) bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	_, found := kv.values[key]
	return found
}

type fakeAccountSource struct {
	mu       sync.Mutex
	accounts map[string]storage.AccountRecord
	reads    int
}

func newFakeAccountSource(records ...storage.AccountRecord) *fakeAccountSource {
	source := &fakeAccountSource{accounts: make(map[string]storage.AccountRecord)}
	for _, record := range records {
		source.accounts[record.UserID] = record
	}
	return source
}

func (s *fakeAccountSource) GetAccount(_ context.Context, userID string) (storage.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	record, found := s.accounts[userID]
	if !found {
		return storage.AccountRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *fakeAccountSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

type fakeChannelSource struct {
	mu       sync.Mutex
	channels map[string]storage.ChannelRecord
	reads    int
}

func newFakeChannelSource(records ...storage.ChannelRecord) *fakeChannelSource {
	source := &fakeChannelSource{channels: make(map[string]storage.ChannelRecord)}
	for _, record := range records {
		source.channels[record.ID] = record
	}
	return source
}

func (s *fakeChannelSource) GetChannel(_ context.Context, channelID string) (storage.ChannelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	record, found := s.channels[channelID]
	if !found {
		return storage.ChannelRecord{}, storage.ErrNotFound
	}
	return record, nil
}

type fakeMemberSource struct {
	mu      sync.Mutex
	members map[string][]storage.MemberRecord
	reads   int
}

func newFakeMemberSource(records ...storage.MemberRecord) *fakeMemberSource {
	source := &fakeMemberSource{members: make(map[string][]storage.MemberRecord)}
	for _, record := range records {
		source.members[record.ServerID] = append(source.members[record.ServerID], record)
	}
	return source
}

func (s *fakeMemberSource) GetMember(_ context.Context, serverID string, userID string) (storage.MemberRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	for _, record := range s.members[serverID] {
		if record.UserID == userID {
			return record, nil
		}
	}
	return storage.MemberRecord{}, storage.ErrNotFound
}

func (s *fakeMemberSource) ListServerMembers(_ context.Context, serverID string) ([]storage.MemberRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return append([]storage.MemberRecord(nil), s.members[serverID]...), nil
}

// fakeDecoder returns fixed claims or a fixed error.
type fakeDecoder struct {
	claims token.Claims
	err    error
}

func (d fakeDecoder) Decode(string) (token.Claims, error) {
	if d.err != nil {
		return token.Claims{}, d.err
	}
	return d.claims, nil
}
