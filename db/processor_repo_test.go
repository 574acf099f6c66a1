package db

import (
	"errors"
	"testing"

	"github.com/rankdesk/rankdesk/domain"
)

func TestProcessorRepo_CreateAndGet(t *testing.T) {
	t.Run("should assign sequential ids and timestamps", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		first := testProcessor(t, repo, "Snapdragon 8", "A")
		second := testProcessor(t, repo, "Dimensity 9300", "A+")

		if second <= first {
			t.Fatalf("\nwanted:\nincreasing ids\ngot:\n%d then %d", first, second)
		}

		got, err := repo.GetProcessors()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if len(got) != 2 {
			t.Fatalf("\nwanted:\n2\ngot:\n%d", len(got))
		}
		if *got[0].ID != first || got[0].Processor != "Snapdragon 8" {
			t.Fatalf("\nwanted:\n%d Snapdragon 8\ngot:\n%d %s", first, *got[0].ID, got[0].Processor)
		}
		if got[0].CreatedAt == "" || got[0].UpdatedAt == "" {
			t.Fatalf("wanted timestamps to be set, got %q %q", got[0].CreatedAt, got[0].UpdatedAt)
		}
	})

	t.Run("should store empty fields as missing", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		testProcessor(t, repo, "Snapdragon 8", "")

		var rating *string
		if err := repo.conn.Get(&rating, `SELECT rating FROM processor LIMIT 1`); err != nil {
			t.Fatalf("reading rating: %v", err)
		}
		if rating != nil {
			t.Fatalf("\nwanted:\nNULL\ngot:\n%q", *rating)
		}
	})
}

func TestProcessorRepo_Update(t *testing.T) {
	t.Run("should replace the fields of an existing processor", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		id := testProcessor(t, repo, "Snapdragon 8", "A")

		err := repo.UpdateProcessor(id, &domain.Processor{Processor: "Snapdragon 8 Gen 3", Rating: "S", GPU: "Adreno 750"})
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		got, err := repo.GetProcessors()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if got[0].Processor != "Snapdragon 8 Gen 3" || got[0].Rating != "S" || got[0].GPU != "Adreno 750" {
			t.Fatalf("\nwanted:\nupdated processor\ngot:\n%+v", got[0])
		}
	})

	t.Run("should return ErrNotFound for a missing id", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		err := repo.UpdateProcessor(42, &domain.Processor{Processor: "Ghost"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", domain.ErrNotFound, err)
		}
	})
}

func TestProcessorRepo_Delete(t *testing.T) {
	t.Run("should delete an existing processor", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		id := testProcessor(t, repo, "Snapdragon 8", "A")
		testProcessor(t, repo, "Tensor G3", "B")

		if err := repo.DeleteProcessor(id); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		got, err := repo.GetProcessors()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if len(got) != 1 || got[0].Processor != "Tensor G3" {
			t.Fatalf("\nwanted:\n[Tensor G3]\ngot:\n%+v", got)
		}
	})

	t.Run("should return ErrNotFound for a missing id", func(t *testing.T) {
		repo, teardown := setupTestDB(t)
		defer teardown()

		err := repo.DeleteProcessor(7)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", domain.ErrNotFound, err)
		}
	})
}
