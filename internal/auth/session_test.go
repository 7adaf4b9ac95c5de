package auth

import (
	"context"
	"testing"
	"time"
)

func TestSessionSetGetDelete(t *testing.T) {
	rdb := requireRedis(t)
	ctx := context.Background()

	userId := "user-12345"
	token := "session_test_token"

	if err := SetSession(ctx, rdb, userId, token, 2*time.Second); err != nil {
		t.Fatalf("SetSession failed: %v", err)
	}

	gotToken, err := GetSession(ctx, rdb, userId)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if gotToken != token {
		t.Errorf("expected token %q, got %q", token, gotToken)
	}

	count, err := ActiveSessionCount(ctx, rdb)
	if err != nil {
		t.Fatalf("ActiveSessionCount failed: %v", err)
	}
	if count < 1 {
		t.Errorf("expected at least one active session, got %d", count)
	}

	if err := DeleteSession(ctx, rdb, userId); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	if _, err := GetSession(ctx, rdb, userId); err == nil {
		t.Errorf("expected error for deleted session, got nil")
	}
}
