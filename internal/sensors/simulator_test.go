package sensors

import (
	"context"
	"math"
	"testing"
	"time"

	"hydroponics_controller/internal/models"
)

// fakeClock is advanced manually by the tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time      { return c.t }
func (c *fakeClock) add(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEnvironment_SolenoidFillsTankAndTripsFloats(t *testing.T) {
	clk := newClock()
	env := NewEnvironment(clk.now)
	env.SetTank(0.1)

	lv, _ := env.Read()
	if lv.FloatLow || lv.FloatMid || lv.FloatHigh {
		t.Fatalf("tank at 10%% should be below every float: %+v", lv)
	}

	_ = env.Set(models.Solenoid, true)
	clk.add(100 * time.Second) // +0.2
	lv, _ = env.Read()
	if !lv.FloatLow || lv.FloatMid {
		t.Fatalf("expected only low float wet at 30%%: %+v tank=%v", lv, env.Tank())
	}

	clk.add(400 * time.Second)
	lv, _ = env.Read()
	if !lv.Overflow || env.Tank() != 1 {
		t.Fatalf("tank should clamp at brim and trip overflow: %+v tank=%v", lv, env.Tank())
	}
}

func TestEnvironment_EmptySourceStopsFilling(t *testing.T) {
	clk := newClock()
	env := NewEnvironment(clk.now)
	env.HasReservoir = true
	env.SetTank(0.2)
	env.SetSource(0.02)

	_ = env.Set(models.Solenoid, true)
	clk.add(10 * time.Minute)
	if got := env.Tank(); !near(got, 0.22) {
		t.Fatalf("tank=%v, want 0.22 once the source runs dry", got)
	}
	lv, _ := env.Read()
	if lv.ReservoirLow == nil || !*lv.ReservoirLow {
		t.Fatalf("reservoir switch should report low")
	}
}

func TestEnvironment_LightsHeatExhaustCools(t *testing.T) {
	clk := newClock()
	env := NewEnvironment(clk.now)

	for i := 1; i <= models.LightCount; i++ {
		_ = env.Set(models.DeviceID{Kind: models.KindLight, Index: i}, true)
	}
	clk.add(10 * time.Minute)
	hot, _ := env.Climate()
	if hot <= AmbientC {
		t.Fatalf("lights should warm the box, got %.2f", hot)
	}

	_ = env.Set(models.DeviceID{Kind: models.KindExhaustFan, Index: 1}, true)
	_ = env.Set(models.DeviceID{Kind: models.KindExhaustFan, Index: 2}, true)
	clk.add(10 * time.Minute)
	cooler, _ := env.Climate()
	if cooler >= hot {
		t.Fatalf("exhaust fans should cool: before %.2f after %.2f", hot, cooler)
	}
}

func TestEnvironment_UnitBiasAndFaults(t *testing.T) {
	clk := newClock()
	env := NewEnvironment(clk.now)
	env.SetClimate(25, 60)

	u := env.Unit("dht-2", 0.5, -2)
	temp, hum, err := u.ReadClimate(context.Background())
	if err != nil || !near(temp, 25.5) || !near(hum, 58) {
		t.Fatalf("biased read: %v %v %v", temp, hum, err)
	}

	env.ClimateFault = ErrSimulatedFault
	if _, _, err := u.ReadClimate(context.Background()); err == nil {
		t.Fatalf("expected injected climate fault")
	}

	env.StuckHigh = true
	env.SetTank(0.1)
	lv, _ := env.Read()
	if !lv.FloatHigh || lv.FloatLow {
		t.Fatalf("stuck high float should read wet on an empty tank: %+v", lv)
	}
}
