package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/smartbin/pkg/calibration"
	"github.com/teslashibe/smartbin/pkg/camera"
	"github.com/teslashibe/smartbin/pkg/inference"
	"github.com/teslashibe/smartbin/pkg/labels"
	"github.com/teslashibe/smartbin/pkg/metrics"
	"github.com/teslashibe/smartbin/pkg/preprocess"
	"github.com/teslashibe/smartbin/pkg/servo"
)

var binLabels = []string{"trash", "recycle", "compost", "electronics", "unknown"}

func testContract() inference.Contract {
	return inference.Contract{
		Width: 8, Height: 6, Channels: 3,
		DType:        inference.DTypeFloat32,
		Layout:       inference.LayoutNHWC,
		ChannelOrder: inference.ChannelsBGR,
		NumClasses:   len(binLabels),
	}
}

// fakeActuators records drives by class.
type fakeActuators struct {
	mu        sync.Mutex
	bound     map[string]*servo.Actuator
	driven    []string
	closeAlls int
	driveErr  error
}

func newFakeActuators() *fakeActuators {
	return &fakeActuators{bound: map[string]*servo.Actuator{
		"trash":       {ID: "p0"},
		"recycle":     {ID: "p1"},
		"compost":     {ID: "p2"},
		"electronics": {ID: "p3"},
	}}
}

func (f *fakeActuators) Lookup(class string) (*servo.Actuator, bool) {
	a, ok := f.bound[class]
	return a, ok
}

func (f *fakeActuators) DriveOpenClose(a *servo.Actuator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.driven = append(f.driven, a.ID)
	return f.driveErr
}

func (f *fakeActuators) CloseAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeAlls++
	return nil
}

// recorder collects reported labels and stops after limit reports.
type recorder struct {
	labels []string
	limit  int
}

func (r *recorder) Report(ctx context.Context, res Result) error {
	r.labels = append(r.labels, res.Label)
	if r.limit > 0 && len(r.labels) >= r.limit {
		return ErrStop
	}
	return nil
}

type fixture struct {
	source    *camera.MockSource
	engine    *inference.MockEngine
	actuators *fakeActuators
	recorder  *recorder
	pauses    int
}

func newDispatcher(t *testing.T, f *fixture, cfg Config, opts ...Option) *Dispatcher {
	t.Helper()
	pre, err := preprocess.New(testContract())
	require.NoError(t, err)
	resolver, err := labels.New(binLabels)
	require.NoError(t, err)

	if f.source == nil {
		f.source = camera.NewMockSource()
	}
	if f.actuators == nil {
		f.actuators = newFakeActuators()
	}
	if f.recorder == nil {
		f.recorder = &recorder{limit: 1}
	}
	require.NoError(t, inference.CheckContract(f.engine, resolver.Len()))

	opts = append([]Option{
		WithReporter(f.recorder),
		WithPause(func(ctx context.Context, d time.Duration) bool {
			f.pauses++
			return ctx.Err() == nil
		}),
	}, opts...)
	return New(cfg, f.source, pre, f.engine, resolver, f.actuators, opts...)
}

func TestRun_DispatchesToBoundActuator(t *testing.T) {
	f := &fixture{engine: inference.NewMockEngine(testContract(), 2)}
	d := newDispatcher(t, f, DefaultConfig())

	err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"compost"}, f.recorder.labels)
	assert.Equal(t, []string{"p2"}, f.actuators.driven)
	assert.Equal(t, 1, f.actuators.closeAlls)
	assert.True(t, f.source.Closed())
	assert.Equal(t, StateShutdown, d.State())
}

func TestRun_DroppedFrameIsSkippedSilently(t *testing.T) {
	f := &fixture{
		source:   camera.NewMockSource(camera.WithReadErrors(camera.ErrFrameDropped)),
		engine:   inference.NewMockEngine(testContract(), 0),
		recorder: &recorder{limit: 1},
	}
	d := newDispatcher(t, f, DefaultConfig())

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, 2, f.source.Reads())
	assert.Equal(t, 1, f.engine.Calls())
	assert.Equal(t, []string{"trash"}, f.recorder.labels)
	assert.Equal(t, []string{"p0"}, f.actuators.driven)
	assert.Equal(t, 1, f.pauses)
}

func TestRun_UnmappedLabelDrivesNothing(t *testing.T) {
	f := &fixture{engine: inference.NewMockEngine(testContract(), 4)}
	d := newDispatcher(t, f, DefaultConfig())

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []string{"unknown"}, f.recorder.labels)
	assert.Empty(t, f.actuators.driven)
	assert.Equal(t, 1, f.actuators.closeAlls)
}

func TestRun_CancelClosesActuators(t *testing.T) {
	f := &fixture{
		engine:   inference.NewMockEngine(testContract(), 4),
		recorder: &recorder{},
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := newDispatcher(t, f, DefaultConfig(), WithPause(func(ctx context.Context, _ time.Duration) bool {
		cancel()
		return ctx.Err() == nil
	}))

	require.NoError(t, d.Run(ctx))
	assert.Len(t, f.recorder.labels, 1)
	assert.Equal(t, 1, f.actuators.closeAlls)
	assert.True(t, f.source.Closed())
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	f := &fixture{engine: inference.NewMockEngine(testContract(), 0)}
	d := newDispatcher(t, f, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, d.Run(ctx))
	assert.Zero(t, f.source.Reads())
	assert.Equal(t, 1, f.actuators.closeAlls)
}

func TestRun_OpenFailureIsFatal(t *testing.T) {
	f := &fixture{
		source: camera.NewMockSource(camera.WithOpenError(camera.ErrSourceUnavailable)),
		engine: inference.NewMockEngine(testContract(), 0),
	}
	d := newDispatcher(t, f, DefaultConfig())

	err := d.Run(context.Background())
	require.ErrorIs(t, err, camera.ErrSourceUnavailable)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, f.actuators.closeAlls)
}

func TestRun_SourceLostIsFatal(t *testing.T) {
	f := &fixture{
		source: camera.NewMockSource(camera.WithReadErrors(camera.ErrSourceUnavailable)),
		engine: inference.NewMockEngine(testContract(), 0),
	}
	d := newDispatcher(t, f, DefaultConfig())

	err := d.Run(context.Background())
	require.ErrorIs(t, err, camera.ErrSourceUnavailable)
	assert.Empty(t, f.actuators.driven)
	assert.Equal(t, 1, f.actuators.closeAlls)
}

func TestRun_TooManyDropsEscalates(t *testing.T) {
	drops := make([]error, 4)
	for i := range drops {
		drops[i] = camera.ErrFrameDropped
	}
	f := &fixture{
		source: camera.NewMockSource(camera.WithReadErrors(drops...)),
		engine: inference.NewMockEngine(testContract(), 0),
	}
	d := newDispatcher(t, f, Config{MaxConsecutiveDrops: 3})

	err := d.Run(context.Background())
	require.ErrorIs(t, err, camera.ErrSourceUnavailable)
	assert.Equal(t, 4, f.source.Reads())
	assert.Zero(t, f.engine.Calls())
	assert.Equal(t, 3, f.pauses)
}

func TestRun_GoodFrameResetsDropCount(t *testing.T) {
	f := &fixture{
		source: camera.NewMockSource(camera.WithReadErrors(
			camera.ErrFrameDropped, camera.ErrFrameDropped, nil,
			camera.ErrFrameDropped, camera.ErrFrameDropped, nil,
		)),
		engine:   inference.NewMockEngine(testContract(), 4),
		recorder: &recorder{limit: 2},
	}
	d := newDispatcher(t, f, Config{MaxConsecutiveDrops: 2})

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, []string{"unknown", "unknown"}, f.recorder.labels)
}

func TestRun_ContractViolationIsFatal(t *testing.T) {
	wrong := testContract()
	wrong.Width = 16
	f := &fixture{engine: inference.NewMockEngine(wrong, 0)}
	d := newDispatcher(t, f, DefaultConfig())

	err := d.Run(context.Background())
	require.ErrorIs(t, err, inference.ErrContractViolation)
	assert.True(t, IsFatal(err))
	assert.Empty(t, f.recorder.labels)
	assert.Empty(t, f.actuators.driven)
}

func TestRun_DriverErrorDoesNotStopLoop(t *testing.T) {
	f := &fixture{
		engine:   inference.NewMockEngine(testContract(), 1, 3),
		recorder: &recorder{limit: 2},
	}
	f.actuators = newFakeActuators()
	f.actuators.driveErr = errors.New("serial write failed")
	d := newDispatcher(t, f, DefaultConfig())

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, []string{"p1", "p3"}, f.actuators.driven)
	assert.Equal(t, 1, f.pauses, "a failed cycle is followed by the idle pause")
}

func TestRun_SuccessfulCycleSkipsIdlePause(t *testing.T) {
	f := &fixture{
		engine:   inference.NewMockEngine(testContract(), 1, 3),
		recorder: &recorder{limit: 2},
	}
	d := newDispatcher(t, f, DefaultConfig())

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, []string{"p1", "p3"}, f.actuators.driven)
	assert.Zero(t, f.pauses)
}

func TestStep_DriverErrorRecorded(t *testing.T) {
	f := &fixture{
		engine:   inference.NewMockEngine(testContract(), 0),
		recorder: &recorder{},
	}
	f.actuators = newFakeActuators()
	f.actuators.driveErr = errors.New("serial write failed")
	d := newDispatcher(t, f, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, f.source.Open(ctx))

	it, err := d.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, it.Outcome)
	assert.ErrorContains(t, it.Err, "serial write failed")
	assert.False(t, it.paced())
}

func TestRun_IndexOutOfRangeIsFatal(t *testing.T) {
	f := &fixture{engine: inference.NewMockEngine(testContract(), 9)}
	d := newDispatcher(t, f, DefaultConfig())

	err := d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, labels.ErrIndexOutOfRange))
	assert.True(t, IsFatal(err))
	assert.Empty(t, f.recorder.labels)
	assert.Empty(t, f.actuators.driven)
	assert.Equal(t, 1, f.actuators.closeAlls)
}

func TestStep_Outcomes(t *testing.T) {
	f := &fixture{
		source:   camera.NewMockSource(camera.WithReadErrors(camera.ErrFrameDropped)),
		engine:   inference.NewMockEngine(testContract(), 3, 4),
		recorder: &recorder{},
	}
	d := newDispatcher(t, f, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, f.source.Open(ctx))

	it, err := d.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, it.Outcome)

	it, err = d.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Iteration{Outcome: OutcomeDispatched, Label: "electronics", Actuator: "p3"}, it)

	it, err = d.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Iteration{Outcome: OutcomeUnmapped, Label: "unknown"}, it)
	assert.Equal(t, StateIdle, d.State())
}

func TestStep_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f := &fixture{
		source:   camera.NewMockSource(camera.WithReadErrors(camera.ErrFrameDropped)),
		engine:   inference.NewMockEngine(testContract(), 2),
		recorder: &recorder{},
	}
	d := newDispatcher(t, f, DefaultConfig(), WithMetrics(m))
	ctx := context.Background()
	require.NoError(t, f.source.Open(ctx))

	for i := 0; i < 3; i++ {
		_, err := d.Step(ctx)
		require.NoError(t, err)
	}

	expected := `
# HELP smartbin_frames_total Frames read from the camera by result.
# TYPE smartbin_frames_total counter
smartbin_frames_total{result="captured"} 2
smartbin_frames_total{result="dropped"} 1
# HELP smartbin_actuations_total Open/close cycles by actuator and result.
# TYPE smartbin_actuations_total counter
smartbin_actuations_total{actuator="p2",result="ok"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"smartbin_frames_total", "smartbin_actuations_total"))
}

func TestRun_WithRegistry(t *testing.T) {
	driver := servo.NewMockDriver()
	store := calibration.NewFileStore(filepath.Join(t.TempDir(), "calibration.yaml"))
	reg, err := servo.NewRegistry(context.Background(), driver, store, servo.DefaultConfig(),
		servo.WithSleep(func(time.Duration) {}))
	require.NoError(t, err)
	driver.Reset()

	p2, err := reg.Actuator("p2")
	require.NoError(t, err)

	f := &fixture{
		engine:   inference.NewMockEngine(testContract(), 2),
		recorder: &recorder{limit: 1},
	}
	pre, err := preprocess.New(testContract())
	require.NoError(t, err)
	resolver, err := labels.New(binLabels)
	require.NoError(t, err)
	f.source = camera.NewMockSource()

	d := New(DefaultConfig(), f.source, pre, f.engine, resolver, reg, WithReporter(f.recorder))
	require.NoError(t, d.Run(context.Background()))

	open := p2.Command(p2.Open)
	closed := p2.Command(p2.Closed)
	assert.Equal(t, []float64{open, closed, closed}, driver.WritesTo(p2.Pin))

	for _, a := range reg.Actuators() {
		assert.Equal(t, a.Closed, a.Angle(), a.ID)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "dispatching", StateDispatching.String())
	assert.Equal(t, "shutdown", StateShutdown.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
}
