package pgsession

import "testing"

func TestStatementCache_CapacityZeroNeverCaches(t *testing.T) {
	c, err := newStatementCache(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Capacity() != 0 {
		t.Fatalf("Capacity() = %d, want 0", c.Capacity())
	}

	c.Lock()
	c.put("SELECT 1", &StatementHandle{Name: "s1"})
	_, ok := c.get("SELECT 1")
	c.Unlock()

	if ok {
		t.Error("expected a miss against a capacity-0 cache")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestStatementCache_HitAfterInsert(t *testing.T) {
	c, err := newStatementCache(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := &StatementHandle{Name: "s1", SQL: "SELECT $1", ParamOIDs: []uint32{23}}
	c.Lock()
	c.put(h.SQL, h)
	got, ok := c.get(h.SQL)
	c.Unlock()

	if !ok {
		t.Fatal("expected a hit for a just-inserted statement")
	}
	if got.Name != "s1" {
		t.Errorf("Name = %q, want %q", got.Name, "s1")
	}
	if got.Params() != 1 {
		t.Errorf("Params() = %d, want 1", got.Params())
	}
}

func TestStatementCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := newStatementCache(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Lock()
	c.put("a", &StatementHandle{Name: "a"})
	c.put("b", &StatementHandle{Name: "b"})
	c.get("a") // touch a so b becomes least-recently-used
	c.put("c", &StatementHandle{Name: "c"})
	_, hitA := c.get("a")
	_, hitB := c.get("b")
	_, hitC := c.get("c")
	c.Unlock()

	if !hitA {
		t.Error("expected a to survive (recently touched)")
	}
	if hitB {
		t.Error("expected b to have been evicted as least-recently-used")
	}
	if !hitC {
		t.Error("expected c to be present (just inserted)")
	}
}

func TestStatementHandle_ColumnNames(t *testing.T) {
	h := &StatementHandle{Fields: []FieldInfo{{Name: "id"}, {Name: "name"}}}
	names := h.ColumnNames()
	if len(names) != 2 || names[0] != "id" || names[1] != "name" {
		t.Errorf("ColumnNames() = %v, want [id name]", names)
	}
}
