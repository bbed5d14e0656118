package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hotelsync/internal/events"
	"hotelsync/internal/models"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTelegramSender struct {
	mock.Mock
}

func (m *MockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

type fakeToken struct {
	done    chan struct{}
	err     error
	timeout bool
}

func newFakeToken(err error, timeout bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err, timeout: timeout}
	if !timeout {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu      sync.Mutex
	msgs    []published
	err     error
	timeout bool
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) pahomqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newFakeToken(p.err, p.timeout)
}

type recordingSink struct {
	name   string
	err    error
	alerts []Alert
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, a Alert) error {
	s.alerts = append(s.alerts, a)
	return s.err
}

func samplePayload() events.DoubleBookingPayload {
	in := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return events.DoubleBookingPayload{
		RunID:      "run-1",
		TenantID:   "grand",
		RoomID:     7,
		RoomNumber: "101",
		First: events.BookingRef{BookingID: 1, ReservationNumber: "R-000001", GuestName: "X",
			Status: "CONFIRMED", CheckInDate: in, CheckOutDate: in.AddDate(0, 0, 2)},
		Second: events.BookingRef{BookingID: 2, ReservationNumber: "R-000002", GuestName: "Y",
			Status: "CONFIRMED", CheckInDate: in.AddDate(0, 0, 1), CheckOutDate: in.AddDate(0, 0, 3)},
	}
}

func TestDispatcher_FromEvents(t *testing.T) {
	bus := events.NewEventBus()
	sink := &recordingSink{name: "rec"}
	logger := zerolog.Nop()
	NewDispatcher(&logger, sink).Subscribe(bus)

	require.NoError(t, bus.PublishJSON(events.EventDoubleBookingDetected, samplePayload()))
	require.Len(t, sink.alerts, 1)
	a := sink.alerts[0]
	assert.Equal(t, KindDoubleBooking, a.Kind)
	assert.Equal(t, models.SeverityCritical, a.Severity)
	assert.Equal(t, "101", a.RoomNumber)
	assert.Contains(t, a.Lines[0], "R-000001 X (CONFIRMED) 2024-01-10 → 2024-01-12")

	// a clean run is not worth an alert
	require.NoError(t, bus.PublishJSON(events.EventReconcileCompleted, events.ReconcileSummaryPayload{TenantID: "grand", Fixed: 3}))
	assert.Len(t, sink.alerts, 1)

	require.NoError(t, bus.PublishJSON(events.EventReconcileCompleted, events.ReconcileSummaryPayload{
		TenantID: "grand",
		Failed:   1,
		Details: []models.FixDetail{
			{RoomNumber: "101", Applied: true},
			{RoomNumber: "102", From: models.OccupancyOccupied, To: models.OccupancyAvailable, Error: "disk full"},
		},
	}))
	require.Len(t, sink.alerts, 2)
	assert.Equal(t, KindFixFailed, sink.alerts[1].Kind)
	assert.Equal(t, []string{"room 102: OCCUPIED → AVAILABLE: disk full"}, sink.alerts[1].Lines)
}

func TestDispatcher_FailingSinkDoesNotStopOthers(t *testing.T) {
	broken := &recordingSink{name: "broken", err: errors.New("down")}
	ok := &recordingSink{name: "ok"}
	logger := zerolog.Nop()
	d := NewDispatcher(&logger, broken, ok)

	err := d.Dispatch(context.Background(), DoubleBookingAlert(samplePayload()))
	assert.EqualError(t, err, "down")
	assert.Len(t, ok.alerts, 1)
}

func TestTelegramSink(t *testing.T) {
	bot := new(MockTelegramSender)
	sink := NewTelegramSink(bot, []int64{11, 22})

	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ParseMode == models.ParseModeMarkdown &&
			strings.Contains(msg.Text, "Double booking in room 101")
	})).Return(tgbotapi.Message{}, nil).Twice()

	require.NoError(t, sink.Send(context.Background(), DoubleBookingAlert(samplePayload())))
	bot.AssertExpectations(t)

	failing := new(MockTelegramSender)
	failing.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("forbidden")).Once()
	err := NewTelegramSink(failing, []int64{11}).Send(context.Background(), DoubleBookingAlert(samplePayload()))
	assert.ErrorContains(t, err, "chat 11")
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, "hotelsync/alerts", 1)

	require.NoError(t, sink.Send(context.Background(), DoubleBookingAlert(samplePayload())))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "hotelsync/alerts/grand/double_booking", pub.msgs[0].topic)
	assert.Equal(t, byte(1), pub.msgs[0].qos)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &decoded))
	assert.Equal(t, "double_booking", decoded["kind"])
	assert.Equal(t, "CRITICAL", decoded["severity"])
	assert.Contains(t, decoded["text"], "Double booking in room 101")

	pub.timeout = true
	assert.ErrorIs(t, sink.Send(context.Background(), DoubleBookingAlert(samplePayload())), ErrPublishTimeout)

	pub.timeout = false
	pub.err = errors.New("not connected")
	assert.EqualError(t, sink.Send(context.Background(), DoubleBookingAlert(samplePayload())), "not connected")
}
