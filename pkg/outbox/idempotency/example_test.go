package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func ExampleManager_Claim() {
	ctx := context.Background()
	manager, _ := NewManager(newMemoryStore(), 7*24*time.Hour, 5*time.Minute)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	state, _ := manager.Claim(ctx, "order-emails", eventID)
	fmt.Println(state)
	_ = manager.Complete(ctx, "order-emails", eventID)
	state, _ = manager.Claim(ctx, "order-emails", eventID)
	fmt.Println(state)
	// Output:
	// claimed
	// done
}
