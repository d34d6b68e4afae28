package pipeline

import (
	"testing"
	"time"

	"contract-check-bot/internal/domain"
)

func TestJobStoreLastWriteWins(t *testing.T) {
	store := NewJobStore(time.Minute, 10)
	first := &domain.DocumentJob{TGUserID: 1, FileName: "first.pdf"}
	second := &domain.DocumentJob{TGUserID: 1, FileName: "second.pdf"}

	store.Put(first)
	store.Put(second)

	got := store.Get(1)
	if got == nil || got.FileName != "second.pdf" {
		t.Fatalf("вторая загрузка должна вытеснять первую, получили %+v", got)
	}
	if store.Len() != 1 {
		t.Fatalf("ожидали одну запись, получили %d", store.Len())
	}
}

func TestJobStoreTTL(t *testing.T) {
	store := NewJobStore(time.Minute, 10)
	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	store.Put(&domain.DocumentJob{TGUserID: 2})
	if store.Get(2) == nil {
		t.Fatalf("запись должна жить до истечения TTL")
	}

	current = current.Add(2 * time.Minute)
	if store.Get(2) != nil {
		t.Fatalf("просроченная запись должна удаляться")
	}
	if store.Len() != 0 {
		t.Fatalf("кэш должен быть пуст после истечения TTL")
	}
}

func TestJobStoreBounded(t *testing.T) {
	store := NewJobStore(time.Hour, 3)
	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	for i := int64(1); i <= 4; i++ {
		store.Put(&domain.DocumentJob{TGUserID: i})
		current = current.Add(time.Second)
	}

	if store.Len() != 3 {
		t.Fatalf("кэш не должен превышать границу: %d", store.Len())
	}
	if store.Get(1) != nil {
		t.Fatalf("самая старая запись должна вытесняться первой")
	}
	if store.Get(4) == nil {
		t.Fatalf("свежая запись должна оставаться")
	}
}

func TestJobStoreDelete(t *testing.T) {
	store := NewJobStore(time.Minute, 10)
	store.Put(&domain.DocumentJob{TGUserID: 5})
	store.Delete(5)
	if store.Get(5) != nil {
		t.Fatalf("удалённая запись не должна возвращаться")
	}
}
