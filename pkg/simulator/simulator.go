// Package simulator serves a synthetic inverter dongle at /api/data. It is
// used for demos and for exercising the dashboard without hardware.
package simulator

import (
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/solarstation/livedash/pkg/server"
	"github.com/solarstation/livedash/pkg/snapshot"
	"github.com/solarstation/livedash/pkg/utils/ptr"
)

const (
	DefaultSerial      = "SIM0000001"
	DefaultCapacityWh  = 11600
	DefaultPeakPVWatts = 8000
	DefaultErrorStatus = http.StatusInternalServerError

	maxBatteryWatts = 5000
	minSOC          = 10
	baseLoadWatts   = 350
)

type Options struct {
	Serial      string
	CapacityWh  float64
	PeakPVWatts float64
	// InitialSOC defaults to 60.
	InitialSOC float64
	// Warmup is the number of requests answered with {"error":"No data"},
	// like a dongle that has not read the inverter yet.
	Warmup int
	// ErrorRate is the probability in [0, 1] of answering ErrorStatus.
	ErrorRate   float64
	ErrorStatus int
	// Seed makes the generated values reproducible. 0 seeds from the clock.
	Seed  int64
	Clock clockwork.Clock
}

func (o *Options) setDefaults() {
	if o.Serial == "" {
		o.Serial = DefaultSerial
	}
	if o.CapacityWh <= 0 {
		o.CapacityWh = DefaultCapacityWh
	}
	if o.PeakPVWatts <= 0 {
		o.PeakPVWatts = DefaultPeakPVWatts
	}
	if o.InitialSOC <= 0 || o.InitialSOC > 100 {
		o.InitialSOC = 60
	}
	if o.ErrorStatus == 0 {
		o.ErrorStatus = DefaultErrorStatus
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Seed == 0 {
		o.Seed = o.Clock.Now().UnixNano()
	}
}

// Simulator is a stateful plant model. Every sample advances the battery and
// the daily counters by the time elapsed since the previous one.
type Simulator struct {
	opts Options

	mu       sync.Mutex
	rng      *rand.Rand
	requests int
	last     time.Time
	soc      float64

	pvToday, pvTotal       float64
	chargedToday, disToday float64
	buyToday, sellToday    float64
	loadToday              float64
}

func New(opts Options) *Simulator {
	opts.setDefaults()
	return &Simulator{
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
		soc:  opts.InitialSOC,
		// A fresh plant has some history.
		pvTotal: 1234.5,
	}
}

// Sample returns the next snapshot.
func (s *Simulator) Sample() *snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample()
}

func (s *Simulator) sample() *snapshot.Snapshot {
	now := s.opts.Clock.Now()
	var dtHours float64
	if !s.last.IsZero() {
		dtHours = now.Sub(s.last).Hours()
		if now.YearDay() != s.last.YearDay() || now.Year() != s.last.Year() {
			s.resetDaily()
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			dtHours = now.Sub(midnight).Hours()
		}
	}
	s.last = now

	pv := s.pvWatts(now)
	load := baseLoadWatts + s.rng.Float64()*1500

	// Battery covers the difference within its limits. Positive discharges.
	battery := clamp(load-pv, -maxBatteryWatts, maxBatteryWatts)
	if battery < 0 && s.soc >= 100 {
		battery = 0
	}
	if battery > 0 && s.soc <= minSOC {
		battery = 0
	}
	grid := load - pv - battery

	s.soc = clamp(s.soc-battery*dtHours/s.opts.CapacityWh*100, 0, 100)

	kwh := func(w float64) float64 { return w * dtHours / 1000 }
	s.pvToday += kwh(pv)
	s.pvTotal += kwh(pv)
	s.loadToday += kwh(load)
	if battery < 0 {
		s.chargedToday += kwh(-battery)
	} else {
		s.disToday += kwh(battery)
	}
	if grid > 0 {
		s.buyToday += kwh(grid)
	} else {
		s.sellToday += kwh(-grid)
	}

	out := pv + battery
	return &snapshot.Snapshot{
		PV1Power:               ptr.To(round(pv * 0.55)),
		PV2Power:               ptr.To(round(pv * 0.45)),
		PVToday:                ptr.To(round1(s.pvToday)),
		PVTotal:                ptr.To(round1(s.pvTotal)),
		SOC:                    ptr.To(math.Round(s.soc)),
		BatteryPower:           ptr.To(round(battery)),
		BatteryCapacityWh:      ptr.To(s.opts.CapacityWh),
		BatteryTemperature:     ptr.To(round1(22 + s.rng.Float64()*4)),
		BatteryChargedToday:    ptr.To(round1(s.chargedToday)),
		BatteryDischargedToday: ptr.To(round1(s.disToday)),
		HasBattery:             ptr.To(true),
		L1Power:                ptr.To(round(out / 3)),
		L2Power:                ptr.To(round(out / 3)),
		L3Power:                ptr.To(round(out / 3)),
		SerialNumber:           ptr.To(s.opts.Serial),
		InverterTemperature:    ptr.To(round1(30 + pv/s.opts.PeakPVWatts*15)),
		InverterMode:           ptr.To(1),
		GridPowerL1:            ptr.To(round(grid / 3)),
		GridPowerL2:            ptr.To(round(grid / 3)),
		GridPowerL3:            ptr.To(round(grid / 3)),
		GridBuyToday:           ptr.To(round1(s.buyToday)),
		GridSellToday:          ptr.To(round1(s.sellToday)),
		LoadPower:              ptr.To(round(load)),
		LoadToday:              ptr.To(round1(s.loadToday)),
		Status:                 ptr.To(1),
	}
}

// pvWatts follows a half sine between 06:00 and 18:00 with some cloud noise.
func (s *Simulator) pvWatts(now time.Time) float64 {
	hour := float64(now.Hour()) + float64(now.Minute())/60
	sun := math.Sin(math.Pi * (hour - 6) / 12)
	if sun <= 0 {
		return 0
	}
	return s.opts.PeakPVWatts * sun * (0.8 + 0.2*s.rng.Float64())
}

func (s *Simulator) resetDaily() {
	s.pvToday = 0
	s.chargedToday = 0
	s.disToday = 0
	s.buyToday = 0
	s.sellToday = 0
	s.loadToday = 0
}

// Handler serves the simulated device.
func (s *Simulator) Handler() http.Handler {
	router := server.NewEngine()
	router.GET("/api/data", s.getData)
	return router
}

func (s *Simulator) getData(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Access-Control-Allow-Origin", "*")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests++
	if s.requests <= s.opts.Warmup {
		c.JSON(http.StatusOK, gin.H{"error": "No data"})
		return
	}
	if s.opts.ErrorRate > 0 && s.rng.Float64() < s.opts.ErrorRate {
		logrus.WithField("status", s.opts.ErrorStatus).Debug("injecting simulated failure")
		c.String(s.opts.ErrorStatus, http.StatusText(s.opts.ErrorStatus))
		return
	}
	c.JSON(http.StatusOK, s.sample())
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64) float64  { return math.Round(v) }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
