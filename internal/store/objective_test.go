package store

import (
	"testing"

	"github.com/dukerupert/prota/internal/model"
)

func TestObjectiveCRUD(t *testing.T) {
	objs := NewObjectiveStore(setupTestDB(t))

	obj, err := objs.Create("Learn guitar", "Play three songs", "mind", model.PriorityHigh, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if obj.ID == 0 {
		t.Fatal("expected non-zero id")
	}
	if !obj.Active {
		t.Error("new objective should be active")
	}
	if obj.Progress != 0 {
		t.Errorf("progress = %d, want 0", obj.Progress)
	}

	got, err := objs.GetByID(obj.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Title != "Learn guitar" {
		t.Fatalf("get = %+v, want title %q", got, "Learn guitar")
	}

	updated, err := objs.Update(obj.ID, "Learn bass", "Play one song", "mind", model.PriorityLow)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Learn bass" || updated.Priority != model.PriorityLow {
		t.Errorf("update = %+v", updated)
	}

	if err := objs.SoftDelete(obj.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	active, err := objs.List(false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active objectives = %d, want 0", len(active))
	}
	all, err := objs.List(true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 || all[0].Active {
		t.Errorf("list all = %+v, want one inactive objective", all)
	}
}

func TestObjectiveGetMissing(t *testing.T) {
	objs := NewObjectiveStore(setupTestDB(t))

	got, err := objs.GetByID(999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}
