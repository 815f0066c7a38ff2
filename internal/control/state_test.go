package control

import (
	"sync"
	"testing"

	"hydroponics_controller/internal/models"
)

func TestStateStore_EmptyBeforePublish(t *testing.T) {
	if _, ok := NewStateStore().Current(); ok {
		t.Fatal("expected no state before the first publish")
	}
}

func TestStateStore_CopiesAreIsolated(t *testing.T) {
	s := NewStateStore()
	st := models.ControllerState{
		Tick:    1,
		Devices: []models.Device{{Name: "Pump 1"}},
		Errors:  []string{"x"},
	}
	s.Publish(st)
	st.Devices[0].Name = "mutated"

	got, _ := s.Current()
	if got.Devices[0].Name != "Pump 1" {
		t.Fatal("publisher mutation leaked into the store")
	}
	got.Errors[0] = "y"
	again, _ := s.Current()
	if again.Errors[0] != "x" {
		t.Fatal("reader mutation leaked into the store")
	}
}

func TestStateStore_ReadersSeeWholeTicks(t *testing.T) {
	s := NewStateStore()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st, ok := s.Current()
				if !ok {
					continue
				}
				// Every device in a published tick carries that tick's number.
				for _, d := range st.Devices {
					if d.Name != tickName(st.Tick) {
						t.Errorf("torn read: tick %d has device %q", st.Tick, d.Name)
						return
					}
				}
			}
		}()
	}

	for i := uint64(1); i <= 2000; i++ {
		devs := make([]models.Device, 5)
		for j := range devs {
			devs[j].Name = tickName(i)
		}
		s.Publish(models.ControllerState{Tick: i, Devices: devs})
	}
	close(stop)
	wg.Wait()
}

func tickName(n uint64) string {
	return string(rune('a' + n%26))
}
