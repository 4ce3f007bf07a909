package idgen_test

import (
	"regexp"
	"sort"
	"testing"
	"time"

	"github.com/applelectricals/microjpeg/adapters/idgen"
)

func TestULID_SortsByCreation(t *testing.T) {
	g := idgen.ULID{}

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		ids = append(ids, g.New())
		time.Sleep(2 * time.Millisecond)
	}
	if len(ids[0]) != 26 {
		t.Errorf("ULID length = %d, want 26", len(ids[0]))
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("ULIDs not time ordered: %v", ids)
	}
}

func TestUUID_New(t *testing.T) {
	id := idgen.UUID{}.New()
	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !uuidRegex.MatchString(id) {
		t.Errorf("ID %s doesn't match UUID v4 format", id)
	}
}

func TestSequential_New(t *testing.T) {
	g := idgen.NewSequential("rec_")

	if id := g.New(); id != "rec_1" {
		t.Errorf("first ID = %s, want rec_1", id)
	}
	if id := g.New(); id != "rec_2" {
		t.Errorf("second ID = %s, want rec_2", id)
	}
}
