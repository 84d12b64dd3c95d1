package snowflake

import "testing"

func TestNewGenerator(t *testing.T) {
	_, err := NewGenerator(0)
	if err != nil {
		t.Error(err)
	}

	_, err = NewGenerator(MaxWorkerID + 1)
	if err == nil {
		t.Error("Expected an error for an out of range worker ID, got nil")
	}
}

func TestGenerate(t *testing.T) {
	gen, err := NewGenerator(7)
	if err != nil {
		t.Fatal(err)
	}

	id, err := gen.Generate()
	if err != nil {
		t.Error(err)
	}

	parts := Extract(id)
	if parts.WorkerID != 7 {
		t.Errorf("Extracted worker ID %d, want 7", parts.WorkerID)
	}
}

func TestGenerateMonotonic(t *testing.T) {
	gen, err := NewGenerator(0)
	if err != nil {
		t.Fatal(err)
	}

	var last int64
	for range 1000 {
		id, err := gen.Generate()
		if err != nil {
			// increment overflow within a single millisecond is a valid outcome
			return
		}
		if id <= last {
			t.Fatalf("Generated ID %d is not greater than previous ID %d", id, last)
		}
		last = id
	}
}

func TestIncrementOverflow(t *testing.T) {
	gen, err := NewGenerator(0)
	if err != nil {
		t.Fatal(err)
	}

	for range 100000 {
		_, err := gen.Generate()
		if err != nil {
			return
		}
	}
	t.Error("Expected increment overflow, but there wasn't")
}
