package resource

import (
	"sync"
	"testing"
)

type testObserver struct {
	events []Event[string]
}

func (o *testObserver) OnResourceEvent(e Event[string]) {
	o.events = append(o.events, e)
}

func TestTable_Basic(t *testing.T) {
	table := NewTable[string]()

	h := table.Insert("test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	if table.Len() != 1 {
		t.Fatal("Expected Len() == 1 after Insert")
	}

	val, ok := table.Remove(h)
	if !ok {
		t.Fatal("Remove failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}

	if _, ok := table.Remove(h); ok {
		t.Fatal("double Remove should fail")
	}
	if _, ok := table.Remove(0); ok {
		t.Fatal("handle 0 should be invalid")
	}
}

func TestTable_HandleReuse(t *testing.T) {
	table := NewTable[int]()
	h1 := table.Insert(1)
	h2 := table.Insert(2)
	table.Remove(h1)

	h3 := table.Insert(3)
	if h3 != h1 {
		t.Errorf("freed handle not reused: got %d, want %d", h3, h1)
	}
	if v, _ := table.Remove(h2); v != 2 {
		t.Errorf("Remove(h2) = %d", v)
	}
	table.Insert(2)
	if table.Len() != 2 {
		t.Errorf("Len = %d, want 2", table.Len())
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable[string]()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert("test")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated {
		t.Fatal("Expected EventCreated")
	}
	if obs.events[0].Handle != h || obs.events[0].Remaining != 1 {
		t.Fatalf("Wrong event %+v", obs.events[0])
	}

	table.Remove(h)
	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[1].Type != EventDropped || obs.events[1].Remaining != 0 {
		t.Fatalf("Wrong event %+v", obs.events[1])
	}
}

func TestTable_ObserverReentrant(t *testing.T) {
	table := NewTable[string]()
	var lens []int
	table.Subscribe(ObserverFunc[string](func(e Event[string]) {
		lens = append(lens, table.Len())
	}))
	h := table.Insert("a")
	table.Remove(h)
	if len(lens) != 2 || lens[0] != 1 || lens[1] != 0 {
		t.Fatalf("observer saw lens %v", lens)
	}
}

func TestTable_Clear(t *testing.T) {
	table := NewTable[*dropCounter]()
	var remaining []int
	table.Subscribe(ObserverFunc[*dropCounter](func(e Event[*dropCounter]) {
		if e.Type == EventDropped {
			remaining = append(remaining, e.Remaining)
		}
	}))

	drops := []*dropCounter{{}, {}, {}}
	for _, d := range drops {
		table.Insert(d)
	}
	if table.Len() != 3 {
		t.Fatal("Expected Len() == 3")
	}

	table.Clear()

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Clear")
	}
	for i, d := range drops {
		if d.count != 1 {
			t.Errorf("entry %d dropped %d times", i, d.count)
		}
	}
	if len(remaining) != 3 || remaining[2] != 0 {
		t.Errorf("observer saw remaining %v", remaining)
	}
}

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestTable_DropperInterface(t *testing.T) {
	table := NewTable[*dropCounter]()
	d := &dropCounter{}

	h := table.Insert(d)
	table.Remove(h)

	if d.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", d.count)
	}
}

func TestTable_Each(t *testing.T) {
	table := NewTable[int]()
	for i := 1; i <= 5; i++ {
		table.Insert(i)
	}
	sum := 0
	table.Each(func(_ Handle, v int) bool {
		sum += v
		return v < 3
	})
	if sum != 6 {
		t.Errorf("Each early stop sum = %d, want 6", sum)
	}
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable[int]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h := table.Insert(i*1000 + j)
				table.Remove(h)
			}
		}(i)
	}
	wg.Wait()
	if table.Len() != 0 {
		t.Fatalf("Len = %d after balanced insert/remove", table.Len())
	}
}
