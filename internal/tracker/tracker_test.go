package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ygagnon/farewatch/internal/duffel"
	"github.com/ygagnon/farewatch/internal/store"
)

// --------------------------------------------------------------------------
// Mocks
// --------------------------------------------------------------------------

type insertedObservation struct {
	destinationID int64
	price         float64
	currency      string
	airline       string
}

type insertedAlert struct {
	destinationID int64
	alertType     string
	message       string
}

type mockStore struct {
	dests   []store.Destination
	history map[int64][]store.PriceObservation
	latest  map[int64]*store.PriceObservation

	listErr error

	observations []insertedObservation
	alerts       []insertedAlert
	alertErr     error
}

func (m *mockStore) ListActiveDestinations(ctx context.Context) ([]store.Destination, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.dests, nil
}

func (m *mockStore) GetDestination(ctx context.Context, id int64) (*store.Destination, error) {
	for i := range m.dests {
		if m.dests[i].ID == id {
			return &m.dests[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) InsertObservation(ctx context.Context, destinationID int64, price float64, currency, airline string) (*store.PriceObservation, error) {
	m.observations = append(m.observations, insertedObservation{destinationID, price, currency, airline})
	return &store.PriceObservation{DestinationID: destinationID, Price: price}, nil
}

func (m *mockStore) ListObservationsSince(ctx context.Context, destinationID int64, since time.Time) ([]store.PriceObservation, error) {
	return m.history[destinationID], nil
}

func (m *mockStore) LatestObservation(ctx context.Context, destinationID int64) (*store.PriceObservation, error) {
	return m.latest[destinationID], nil
}

func (m *mockStore) InsertAlert(ctx context.Context, destinationID int64, alertType, message string) error {
	if m.alertErr != nil {
		return m.alertErr
	}
	m.alerts = append(m.alerts, insertedAlert{destinationID, alertType, message})
	return nil
}

type fare struct {
	price float64
	found bool
	err   error
}

type mockSource struct {
	fares map[string]fare // keyed by origin
	calls int
}

func (m *mockSource) LowestPrice(ctx context.Context, q duffel.Query) (float64, bool, error) {
	m.calls++
	f, ok := m.fares[q.Origin]
	if !ok {
		return 0, false, nil
	}
	return f.price, f.found, f.err
}

type mockNotifier struct {
	sent    []string
	sendErr error
}

func (m *mockNotifier) Send(ctx context.Context, message string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, message)
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChecker(t *testing.T, st Store, src PriceSource, n Notifier) *Checker {
	t.Helper()
	c, err := New(st, src, n, Options{
		CheckTimes: []string{"06:00", "18:00"},
		Delay:      0,
		Currency:   "CAD",
		Airline:    "Air Canada",
	}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func dest(id int64, origin string, daysOut int) store.Destination {
	return store.Destination{
		ID:            id,
		Origin:        origin,
		Destination:   "CUN",
		DepartureDate: time.Now().AddDate(0, 0, daysOut),
		IsActive:      true,
	}
}

func observations(prices ...float64) []store.PriceObservation {
	out := make([]store.PriceObservation, len(prices))
	for i, p := range prices {
		out[i] = store.PriceObservation{Price: p}
	}
	return out
}

// --------------------------------------------------------------------------
// Sweep tests
// --------------------------------------------------------------------------

func TestCheckAllIsolatesFailures(t *testing.T) {
	st := &mockStore{
		dests:   []store.Destination{dest(1, "YUL", 60), dest(2, "YQB", 60), dest(3, "YYZ", 60)},
		history: map[int64][]store.PriceObservation{},
		latest:  map[int64]*store.PriceObservation{},
	}
	src := &mockSource{fares: map[string]fare{
		"YUL": {price: 600, found: true},
		"YQB": {err: errors.New("provider timeout")},
		"YYZ": {price: 450, found: true},
	}}
	n := &mockNotifier{}
	c := newTestChecker(t, st, src, n)

	result := c.CheckAll(context.Background())

	if !result.Started {
		t.Fatal("sweep did not start")
	}
	if result.DestinationsFound != 3 || result.Checked != 2 || result.Failed != 1 {
		t.Errorf("found=%d checked=%d failed=%d, want 3/2/1",
			result.DestinationsFound, result.Checked, result.Failed)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "provider timeout") {
		t.Errorf("Errors = %v", result.Errors)
	}

	// The failing destination persists nothing; the two others do.
	if len(st.observations) != 2 {
		t.Fatalf("persisted %d observations, want 2", len(st.observations))
	}
	if st.observations[0].destinationID != 1 || st.observations[1].destinationID != 3 {
		t.Errorf("persisted for destinations %d and %d, want 1 and 3",
			st.observations[0].destinationID, st.observations[1].destinationID)
	}
	if st.observations[0].currency != "CAD" || st.observations[0].airline != "Air Canada" {
		t.Errorf("observation tagged %q/%q", st.observations[0].currency, st.observations[0].airline)
	}

	if c.Sweeping() {
		t.Error("sweep flag still set after CheckAll returned")
	}
}

func TestCheckAllDropsOverlappingSweep(t *testing.T) {
	st := &mockStore{dests: []store.Destination{dest(1, "YUL", 60)}}
	src := &mockSource{fares: map[string]fare{"YUL": {price: 600, found: true}}}
	c := newTestChecker(t, st, src, &mockNotifier{})

	c.sweeping.Store(true)
	result := c.CheckAll(context.Background())

	if result.Started {
		t.Error("overlapping sweep should be dropped")
	}
	if src.calls != 0 {
		t.Errorf("price source called %d times during a dropped sweep", src.calls)
	}
	if !c.Sweeping() {
		t.Error("dropped sweep must not clear the running sweep's flag")
	}
	if got := result.Summary(); got != "skipped (sweep already in progress)" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestCheckAllListFailureClearsFlag(t *testing.T) {
	st := &mockStore{listErr: errors.New("connection refused")}
	c := newTestChecker(t, st, &mockSource{}, &mockNotifier{})

	result := c.CheckAll(context.Background())

	if !result.Started {
		t.Error("sweep should report started even when the listing fails")
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v", result.Errors)
	}
	if c.Sweeping() {
		t.Error("sweep flag still set after a failed sweep")
	}
}

func TestCheckDestinationNoOffers(t *testing.T) {
	st := &mockStore{
		dests:   []store.Destination{dest(1, "YUL", 60)},
		history: map[int64][]store.PriceObservation{},
		latest:  map[int64]*store.PriceObservation{},
	}
	src := &mockSource{fares: map[string]fare{"YUL": {found: false}}}
	n := &mockNotifier{}
	c := newTestChecker(t, st, src, n)

	result := c.CheckAll(context.Background())

	if result.Failed != 0 || result.Checked != 1 {
		t.Errorf("checked=%d failed=%d, want 1/0", result.Checked, result.Failed)
	}
	if len(st.observations) != 0 {
		t.Errorf("no-offer search persisted %d observations", len(st.observations))
	}
	if len(st.alerts) != 0 || len(n.sent) != 0 {
		t.Errorf("no-offer search raised alerts: %d records, %d sends", len(st.alerts), len(n.sent))
	}
}

// --------------------------------------------------------------------------
// Alert tests
// --------------------------------------------------------------------------

func TestPriceDropFiresOneSendAndOneRecord(t *testing.T) {
	// Flat history keeps the score below the buy bar; the previous reading
	// of 1000 against a new 840 is a 16% drop.
	st := &mockStore{
		dests:   []store.Destination{dest(1, "YUL", 60)},
		history: map[int64][]store.PriceObservation{1: observations(700, 700, 700, 700, 700, 700)},
		latest:  map[int64]*store.PriceObservation{1: {Price: 1000}},
	}
	src := &mockSource{fares: map[string]fare{"YUL": {price: 840, found: true}}}
	n := &mockNotifier{}
	c := newTestChecker(t, st, src, n)

	result := c.CheckAll(context.Background())

	if result.AlertsFired != 1 {
		t.Fatalf("AlertsFired = %d, want 1", result.AlertsFired)
	}
	if len(n.sent) != 1 || len(st.alerts) != 1 {
		t.Fatalf("sends=%d records=%d, want 1/1", len(n.sent), len(st.alerts))
	}
	if st.alerts[0].alertType != store.AlertPriceDrop {
		t.Errorf("alertType = %q, want %q", st.alerts[0].alertType, store.AlertPriceDrop)
	}
	if st.alerts[0].message != n.sent[0] {
		t.Errorf("persisted message %q differs from sent message %q",
			st.alerts[0].message, n.sent[0])
	}
}

func TestMaxPriceReachedFiresWithOptimal(t *testing.T) {
	// A fare under the configured maximum triggers the target-price alert
	// and, through the buy decision, the optimal-moment alert as well. The
	// conditions are independent.
	maxPrice := 800.0
	d := dest(1, "YUL", 60)
	d.MaxPrice = &maxPrice

	st := &mockStore{
		dests:   []store.Destination{d},
		history: map[int64][]store.PriceObservation{1: observations(900, 900, 900)},
		latest:  map[int64]*store.PriceObservation{1: {Price: 850}},
	}
	src := &mockSource{fares: map[string]fare{"YUL": {price: 750, found: true}}}
	n := &mockNotifier{}
	c := newTestChecker(t, st, src, n)

	result := c.CheckAll(context.Background())

	if result.AlertsFired != 2 {
		t.Fatalf("AlertsFired = %d, want 2", result.AlertsFired)
	}
	types := map[string]bool{}
	for _, a := range st.alerts {
		types[a.alertType] = true
	}
	if !types[store.AlertMaxPriceReached] || !types[store.AlertOptimalPrice] {
		t.Errorf("fired types = %v", types)
	}
	if len(n.sent) != 2 {
		t.Errorf("sends = %d, want 2", len(n.sent))
	}
}

func TestAlertFiresAgainOnEveryQualifyingSweep(t *testing.T) {
	maxPrice := 800.0
	d := dest(1, "YUL", 60)
	d.MaxPrice = &maxPrice

	st := &mockStore{
		dests:   []store.Destination{d},
		history: map[int64][]store.PriceObservation{1: observations(900, 900, 900)},
		latest:  map[int64]*store.PriceObservation{1: {Price: 850}},
	}
	src := &mockSource{fares: map[string]fare{"YUL": {price: 750, found: true}}}
	c := newTestChecker(t, st, src, &mockNotifier{})

	first := c.CheckAll(context.Background())
	second := c.CheckAll(context.Background())

	if first.AlertsFired != second.AlertsFired {
		t.Errorf("alert counts differ across sweeps: %d then %d",
			first.AlertsFired, second.AlertsFired)
	}
	if len(st.alerts) != first.AlertsFired*2 {
		t.Errorf("persisted %d alerts over two sweeps, want %d",
			len(st.alerts), first.AlertsFired*2)
	}
}

func TestAlertSendFailureStillPersists(t *testing.T) {
	maxPrice := 800.0
	d := dest(1, "YUL", 60)
	d.MaxPrice = &maxPrice

	st := &mockStore{
		dests:   []store.Destination{d},
		history: map[int64][]store.PriceObservation{},
		latest:  map[int64]*store.PriceObservation{},
	}
	src := &mockSource{fares: map[string]fare{"YUL": {price: 750, found: true}}}
	n := &mockNotifier{sendErr: errors.New("twilio 503")}
	c := newTestChecker(t, st, src, n)

	result := c.CheckAll(context.Background())

	if result.Failed != 0 {
		t.Errorf("a failed notification must not fail the destination check")
	}
	if len(st.alerts) == 0 {
		t.Error("alert record should persist even when the send fails")
	}
}

// --------------------------------------------------------------------------
// CheckOne tests
// --------------------------------------------------------------------------

func TestCheckOneUnknownDestination(t *testing.T) {
	st := &mockStore{}
	c := newTestChecker(t, st, &mockSource{}, &mockNotifier{})

	err := c.CheckOne(context.Background(), 42)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CheckOne = %v, want ErrNotFound", err)
	}
}

func TestCheckOneBypassesSweepLock(t *testing.T) {
	st := &mockStore{
		dests:   []store.Destination{dest(7, "YUL", 60)},
		history: map[int64][]store.PriceObservation{},
		latest:  map[int64]*store.PriceObservation{},
	}
	src := &mockSource{fares: map[string]fare{"YUL": {price: 600, found: true}}}
	c := newTestChecker(t, st, src, &mockNotifier{})

	c.sweeping.Store(true)
	defer c.sweeping.Store(false)

	if err := c.CheckOne(context.Background(), 7); err != nil {
		t.Fatalf("CheckOne during a sweep: %v", err)
	}
	if len(st.observations) != 1 {
		t.Errorf("persisted %d observations, want 1", len(st.observations))
	}
}

func TestCheckOnePropagatesFetchError(t *testing.T) {
	st := &mockStore{dests: []store.Destination{dest(7, "YUL", 60)}}
	src := &mockSource{fares: map[string]fare{"YUL": {err: errors.New("provider down")}}}
	c := newTestChecker(t, st, src, &mockNotifier{})

	err := c.CheckOne(context.Background(), 7)
	if err == nil || !strings.Contains(err.Error(), "fetch price") {
		t.Errorf("CheckOne = %v, want a wrapped fetch error", err)
	}
}

// --------------------------------------------------------------------------
// Options tests
// --------------------------------------------------------------------------

func TestNewRejectsBadCheckTimes(t *testing.T) {
	for _, bad := range [][]string{nil, {"24:00"}, {"06:61"}, {"noon"}} {
		_, err := New(&mockStore{}, &mockSource{}, &mockNotifier{}, Options{
			CheckTimes: bad,
		}, testLogger())
		if err == nil {
			t.Errorf("New(%v) accepted invalid check times", bad)
		}
	}
}

func TestSweepResultSummary(t *testing.T) {
	r := SweepResult{
		Started:           true,
		DestinationsFound: 3,
		Checked:           2,
		Failed:            1,
		AlertsFired:       1,
		Duration:          1500 * time.Millisecond,
	}
	want := fmt.Sprintf("found=3 checked=2 failed=1 alerts=1 dur=%s", "1.5s")
	if got := r.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
