package cache

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/voxhall/voxhall/internal/services/chat/storage"
)

func testMemberRecords() []storage.MemberRecord {
	return []storage.MemberRecord{
		{ServerID: "server-1", UserID: "owner", RoleIDs: []string{"role-admin"}},
		{ServerID: "server-1", UserID: "user-a"},
		{ServerID: "server-1", UserID: "user-b"},
	}
}

func TestMemberReadThroughRoundTrip(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	source := newFakeMemberSource(testMemberRecords()...)
	members := NewMemberCache(kv, source)
	ctx := context.Background()

	miss, err := members.Member(ctx, "server-1", "owner")
	if err != nil {
		t.Fatalf("member miss: %v", err)
	}
	hit, err := members.Member(ctx, "server-1", "owner")
	if err != nil {
		t.Fatalf("member hit: %v", err)
	}

	if hit.UserID != miss.UserID || hit.ServerID != miss.ServerID {
		t.Fatalf("hit = %+v, want %+v", hit, miss)
	}
	if len(hit.RoleIDs) != 1 || hit.RoleIDs[0] != "role-admin" {
		t.Fatalf("unexpected roles: %v", hit.RoleIDs)
	}
	if source.reads != 1 {
		t.Fatalf("durable reads = %d, want 1", source.reads)
	}

	if _, err := members.Member(ctx, "server-1", "stranger"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMembersListsCompleteRoster(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	source := newFakeMemberSource(testMemberRecords()...)
	members := NewMemberCache(kv, source)
	ctx := context.Background()

	listed, err := members.Members(ctx, "server-1")
	if err != nil {
		t.Fatalf("members: %v", err)
	}

	var userIDs []string
	for _, entry := range listed {
		userIDs = append(userIDs, entry.UserID)
	}
	sort.Strings(userIDs)
	want := []string{"owner", "user-a", "user-b"}
	if len(userIDs) != len(want) {
		t.Fatalf("roster = %v, want %v", userIDs, want)
	}
	for i := range want {
		if userIDs[i] != want[i] {
			t.Fatalf("roster = %v, want %v", userIDs, want)
		}
	}

	// Second read serves from cache.
	if _, err := members.Members(ctx, "server-1"); err != nil {
		t.Fatalf("members hit: %v", err)
	}
	if source.reads != 1 {
		t.Fatalf("durable reads = %d, want 1", source.reads)
	}
}

func TestInvalidateServerEvictsRosterAndMember(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	source := newFakeMemberSource(testMemberRecords()...)
	members := NewMemberCache(kv, source)
	ctx := context.Background()

	if _, err := members.Members(ctx, "server-1"); err != nil {
		t.Fatalf("prime roster: %v", err)
	}
	if _, err := members.Member(ctx, "server-1", "user-a"); err != nil {
		t.Fatalf("prime member: %v", err)
	}

	if err := members.InvalidateServer(ctx, "server-1", "user-a"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if kv.has(membersKey("server-1")) {
		t.Fatal("expected roster evicted")
	}
	if kv.has(memberKey("server-1", "user-a")) {
		t.Fatal("expected member entry evicted")
	}
}
