package activity_test

import (
	"context"
	"testing"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/internal/testutil"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/usecase/activity"
)

func TestListIsAdminOnly(t *testing.T) {
	store := testutil.NewStore(t)
	uc := activity.New(store.Activity)
	admin := testutil.SeedUser(t, store, "admin", domain.RoleAdmin)
	bob := testutil.SeedUser(t, store, "bob", domain.RoleUser)
	ctx := context.Background()

	for _, name := range []string{domain.EventTaskCreated, domain.EventTaskSubmitted} {
		if err := store.Activity.Append(ctx, domain.NewEvent(name, domain.EntityTask, "t1", bob.ID, nil)); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := uc.List(ctx, bob.Principal(), repository.ActivityFilter{}); domain.ReasonOf(err) != domain.ReasonNotAdmin {
		t.Fatalf("non-admin list: %v", err)
	}
	events, err := uc.List(ctx, admin.Principal(), repository.ActivityFilter{EntityID: "t1", Limit: 1})
	if err != nil || len(events) != 1 {
		t.Fatalf("list: %d %v", len(events), err)
	}
}
