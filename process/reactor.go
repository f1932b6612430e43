package process

import (
	"context"
	"math"
	"time"

	"github.com/cyb0124/ocremote/action"
	"github.com/cyb0124/ocremote/avail"
	"github.com/cyb0124/ocremote/bus"
	"github.com/cyb0124/ocremote/codec"
	"github.com/cyb0124/ocremote/future"
	"github.com/cyb0124/ocremote/item"
)

// PVSource names which quantity a reactor process reads its process
// variable from. PVHeat is this module's supplemental variant grounded on
// the heat-exchanger peripherals present in original_source/ alongside the
// fluid- and energy-based reactors the distilled scheduling spec names.
type PVSource int

const (
	PVStoredEnergy PVSource = iota
	PVHotFluid
	PVHeat
)

// reactorBase is the shared state every reactor control loop needs: the
// cyanite gate (getPV reports a PV of 0 whenever cyanite stock is below
// CyaniteNeeded, and the controllers act on that value), which PV source to read,
// and the access used for both.
type reactorBase struct {
	Access        Access
	CyaniteNeeded int
	Source        PVSource

	loop  *future.Loop
	alive *int32
}

// getPV reads the process variable in [0, 1]: 0 immediately if cyanite
// stock can't clear CyaniteNeeded, otherwise hot-fluid-fraction,
// energy-stored-fraction, or heat-fraction depending on Source. Grounded
// on ProcessReactor::getPV in the original server sources.
func (r *reactorBase) getPV(idx *avail.Index) *future.Promise[float64] {
	if idx.Avail(item.ByLabel("Cyanite Ingot"), true) < r.CyaniteNeeded {
		return future.Resolved(r.loop, r.alive, 0.0)
	}
	switch r.Source {
	case PVHotFluid:
		return r.ratioOf("getHotFluidAmount", "getHotFluidAmountMax")
	case PVHeat:
		return r.ratioOf("getHeat", "getMaxHeat")
	default:
		energy := r.call("getEnergyStored")
		return future.Map(energy, func(v codec.Value) float64 {
			n, _ := callResult(v)
			return clamp01(float64(n) / 10000000)
		})
	}
}

func (r *reactorBase) ratioOf(numFn, denomFn string) *future.Promise[float64] {
	num := r.call(numFn)
	denom := r.call(denomFn)
	return future.Map(future.All(r.loop, r.alive, []*future.Promise[codec.Value]{num, denom}), func(vs []codec.Value) float64 {
		n, _ := callResult(vs[0])
		d, _ := callResult(vs[1])
		if d == 0 {
			return 0
		}
		return clamp01(float64(n) / float64(d))
	})
}

func (r *reactorBase) call(fn string) *future.Promise[codec.Value] {
	return r.Access.Client.Enqueue([]action.Action{&action.Call{Inv: r.Access.Inv, Fn: fn, Args: codec.ArrayToTable(nil)}})[0]
}

// callResult unwraps a call response's first return value, packed by the
// agent into an integer-keyed table at key 1, per parseFluxEnergy's
// identical unwrap in fluxnetwork.go.
func callResult(v codec.Value) (codec.Number, bool) {
	outer, ok := v.(codec.Table)
	if !ok {
		return 0, false
	}
	inner, ok := outer.Get(codec.MustKey(codec.Number(1)))
	if !ok {
		return 0, false
	}
	n, ok := inner.(codec.Number)
	return n, ok
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// ReactorHysteresis toggles the reactor fully on or off based on whether
// pv has crossed Upper or Lower, switching at most once per cycle and
// never flapping inside the dead band between the two thresholds.
// Grounded on ProcessReactorHysteresis::cycle.
type ReactorHysteresis struct {
	reactorBase
	Upper, Lower float64
	Logf         func(string, ...any)

	wasOn int // -1 unknown, 0 off, 1 on
}

func NewReactorHysteresis(a Access, cyaniteNeeded int, source PVSource, upper, lower float64, logf func(string, ...any), loop *future.Loop, alive *int32) *ReactorHysteresis {
	return &ReactorHysteresis{
		reactorBase: reactorBase{Access: a, CyaniteNeeded: cyaniteNeeded, Source: source, loop: loop, alive: alive},
		Upper:       upper, Lower: lower, Logf: logf, wasOn: -1,
	}
}

func (r *ReactorHysteresis) EndOfCycle() {}

func (r *ReactorHysteresis) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	return future.Then(r.getPV(idx), func(pv float64) *future.Promise[struct{}] {
		on := -1
		switch {
		case pv > r.Upper && r.wasOn != 0:
			on = 0
		case pv < r.Lower && r.wasOn != 1:
			on = 1
		}
		if on < 0 {
			return future.Resolved[struct{}](r.loop, r.alive, struct{}{})
		}
		if r.Logf != nil {
			if on == 1 {
				r.Logf("reactor: on")
			} else {
				r.Logf("reactor: off")
			}
		}
		r.wasOn = on
		call := &action.Call{Inv: r.Access.Inv, Fn: "setActive", Args: codec.ArrayToTable([]codec.Value{codec.Bool(on == 1)})}
		resp := r.Access.Client.Enqueue([]action.Action{call})[0]
		return future.MapTo(resp, struct{}{})
	})
}

// ReactorProportional keeps the control rod level proportional to pv,
// only re-issuing setAllControlRodLevels when the rounded percentage
// actually changes. Grounded on ProcessReactorProportional::cycle.
type ReactorProportional struct {
	reactorBase
	prev int
}

func NewReactorProportional(a Access, cyaniteNeeded int, source PVSource, loop *future.Loop, alive *int32) *ReactorProportional {
	return &ReactorProportional{reactorBase: reactorBase{Access: a, CyaniteNeeded: cyaniteNeeded, Source: source, loop: loop, alive: alive}, prev: -1}
}

func (r *ReactorProportional) EndOfCycle() {}

func (r *ReactorProportional) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	return future.Then(r.getPV(idx), func(pv float64) *future.Promise[struct{}] {
		rod := int(math.Round(100 * pv))
		if rod == r.prev {
			return future.Resolved[struct{}](r.loop, r.alive, struct{}{})
		}
		r.prev = rod
		call := &action.Call{Inv: r.Access.Inv, Fn: "setAllControlRodLevels", Args: codec.ArrayToTable([]codec.Value{codec.ArrayToTable([]codec.Value{codec.Number(float64(rod))})})}
		resp := r.Access.Client.Enqueue([]action.Action{call})[0]
		return future.MapTo(resp, struct{}{})
	})
}

// ReactorPID drives the control rods with a PID loop over error = (0.5 -
// pv) * 2, so pv==0.5 is the target setpoint. Grounded on
// ProcessReactorPID::cycle; the first cycle after construction only seeds
// prevT/prevE and issues no command, since both the integral and
// derivative terms need a prior sample to mean anything.
type ReactorPID struct {
	reactorBase
	KP, KI, KD float64
	Logf       func(string, ...any)

	isInit  bool
	prevT   time.Time
	prevE   float64
	accum   float64
	prevOut int
}

func NewReactorPID(a Access, cyaniteNeeded int, source PVSource, kp, ki, kd float64, logf func(string, ...any), loop *future.Loop, alive *int32) *ReactorPID {
	return &ReactorPID{
		reactorBase: reactorBase{Access: a, CyaniteNeeded: cyaniteNeeded, Source: source, loop: loop, alive: alive},
		KP:          kp, KI: ki, KD: kd, Logf: logf, isInit: true, prevOut: -1,
	}
}

func (r *ReactorPID) EndOfCycle() {}

func (r *ReactorPID) Cycle(ctx context.Context, idx *avail.Index, b *bus.Bus) *future.Promise[struct{}] {
	return future.Then(r.getPV(idx), func(pv float64) *future.Promise[struct{}] {
		now := time.Now()
		nowE := (0.5 - pv) * 2

		if r.isInit {
			r.isInit = false
			r.prevT = now
			r.prevE = nowE
			return future.Resolved[struct{}](r.loop, r.alive, struct{}{})
		}

		ts := now.Sub(r.prevT).Seconds()
		if ts <= 0 {
			ts = 1e-3
		}
		r.accum = clampF(r.accum+ts*nowE*r.KI, -1, 1)
		diff := (nowE - r.prevE) / ts
		r.prevT = now
		r.prevE = nowE

		rawOut := nowE*r.KP + r.accum + diff*r.KD
		out := clampInt(int(math.Round(100*(0.5-rawOut))), 0, 100)
		if r.Logf != nil {
			r.Logf("reactor pid: E=%.1f%% I=%.1f%% O=%d%%", nowE*100, r.accum*100, out)
		}
		if out == r.prevOut {
			return future.Resolved[struct{}](r.loop, r.alive, struct{}{})
		}
		r.prevOut = out
		call := &action.Call{Inv: r.Access.Inv, Fn: "setAllControlRodLevels", Args: codec.ArrayToTable([]codec.Value{codec.ArrayToTable([]codec.Value{codec.Number(float64(out))})})}
		resp := r.Access.Client.Enqueue([]action.Action{call})[0]
		return future.MapTo(resp, struct{}{})
	})
}

func clampF(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
