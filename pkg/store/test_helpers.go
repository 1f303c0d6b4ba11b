package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthline/hearthline/pkg/types"
)

// StoreFactory builds an empty RecordStore for one test case
type StoreFactory func(t *testing.T) RecordStore

// RecordStoreTestCase defines a scenario run against every backend
type RecordStoreTestCase struct {
	Name string
	Run  func(t *testing.T, s RecordStore)
}

// RunRecordStoreTests runs table-driven scenarios against a backend
func RunRecordStoreTests(t *testing.T, tests []RecordStoreTestCase, storeFactory StoreFactory) {
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			tt.Run(t, storeFactory(t))
		})
	}
}

// SampleAlert returns a valid alert with the given id
func SampleAlert(id string) types.Alert {
	return types.Alert{
		ID:        id,
		Type:      types.AlertTypeMedical,
		Details:   "broken leg",
		Timestamp: "2024-01-01T00:00:00Z",
		Status:    types.AlertStatusActive,
	}
}

// SampleMessage returns a valid message with the given id
func SampleMessage(id string) types.Message {
	return types.Message{
		ID:        id,
		Text:      "message " + id,
		Sender:    "You",
		Timestamp: "2024-01-01T00:00:00.000Z",
	}
}

// RecordStoreContract is the behaviour every RecordStore backend must share
var RecordStoreContract = []RecordStoreTestCase{
	{
		Name: "empty store returns empty sequences",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()

			alerts, err := s.GetAlerts(ctx)
			require.NoError(t, err)
			assert.NotNil(t, alerts)
			assert.Empty(t, alerts)

			messages, err := s.GetMessages(ctx)
			require.NoError(t, err)
			assert.Empty(t, messages)

			devices, err := s.GetDevices(ctx)
			require.NoError(t, err)
			assert.Empty(t, devices)
		},
	},
	{
		Name: "single alert round trip",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()
			alert := SampleAlert("1")

			require.NoError(t, s.SaveAlert(ctx, alert))

			alerts, err := s.GetAlerts(ctx)
			require.NoError(t, err)
			assert.Equal(t, []types.Alert{alert}, alerts)

			usage, err := s.StorageUsage(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, usage.AlertsCount)
		},
	},
	{
		Name: "alerts keep call order and values",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()

			var want []types.Alert
			for i := 0; i < 10; i++ {
				alert := SampleAlert(fmt.Sprintf("%d", i))
				alert.Details = fmt.Sprintf("details %d", i)
				want = append(want, alert)
				require.NoError(t, s.SaveAlert(ctx, alert))
			}

			got, err := s.GetAlerts(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		},
	},
	{
		Name: "duplicate alert ids are retained",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()
			first := SampleAlert("dup")
			second := SampleAlert("dup")
			second.Details = "second report"

			require.NoError(t, s.SaveAlert(ctx, first))
			require.NoError(t, s.SaveAlert(ctx, second))

			got, err := s.GetAlerts(ctx)
			require.NoError(t, err)
			assert.Equal(t, []types.Alert{first, second}, got)
		},
	},
	{
		Name: "messages are append only",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()
			m1, m2 := SampleMessage("m1"), SampleMessage("m2")

			require.NoError(t, s.SaveMessage(ctx, m1))
			require.NoError(t, s.SaveMessage(ctx, m2))

			got, err := s.GetMessages(ctx)
			require.NoError(t, err)
			assert.Equal(t, []types.Message{m1, m2}, got)
		},
	},
	{
		Name: "device upsert replaces in place",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()

			require.NoError(t, s.SaveDevice(ctx, types.Device{ID: "d1", Name: "Radio A", Connected: false}))
			require.NoError(t, s.SaveDevice(ctx, types.Device{ID: "d2", Name: "Radio B"}))
			require.NoError(t, s.SaveDevice(ctx, types.Device{ID: "d1", Name: "Radio A", Connected: true}))

			got, err := s.GetDevices(ctx)
			require.NoError(t, err)
			assert.Equal(t, []types.Device{
				{ID: "d1", Name: "Radio A", Connected: true},
				{ID: "d2", Name: "Radio B"},
			}, got)
		},
	},
	{
		Name: "device save is idempotent",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()
			device := types.Device{ID: "d1", Name: "Radio A", Connected: true}

			for i := 0; i < 3; i++ {
				require.NoError(t, s.SaveDevice(ctx, device))
			}

			got, err := s.GetDevices(ctx)
			require.NoError(t, err)
			assert.Equal(t, []types.Device{device}, got)
		},
	},
	{
		Name: "fresh device id grows the collection by one",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()

			for i := 0; i < 4; i++ {
				require.NoError(t, s.SaveDevice(ctx, types.Device{ID: fmt.Sprintf("d%d", i)}))
				got, err := s.GetDevices(ctx)
				require.NoError(t, err)
				assert.Len(t, got, i+1)
			}
		},
	},
	{
		Name: "clear all empties every collection",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()
			require.NoError(t, s.SaveAlert(ctx, SampleAlert("1")))
			require.NoError(t, s.SaveMessage(ctx, SampleMessage("m1")))
			require.NoError(t, s.SaveDevice(ctx, types.Device{ID: "d1"}))

			require.NoError(t, s.ClearAll(ctx))

			alerts, err := s.GetAlerts(ctx)
			require.NoError(t, err)
			assert.Empty(t, alerts)
			messages, err := s.GetMessages(ctx)
			require.NoError(t, err)
			assert.Empty(t, messages)
			devices, err := s.GetDevices(ctx)
			require.NoError(t, err)
			assert.Empty(t, devices)

			usage, err := s.StorageUsage(ctx)
			require.NoError(t, err)
			assert.Equal(t, Usage{}, *usage)
		},
	},
	{
		Name: "usage counts match collection lengths",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				require.NoError(t, s.SaveAlert(ctx, SampleAlert(fmt.Sprintf("a%d", i))))
			}
			for i := 0; i < 2; i++ {
				require.NoError(t, s.SaveMessage(ctx, SampleMessage(fmt.Sprintf("m%d", i))))
			}
			require.NoError(t, s.SaveDevice(ctx, types.Device{ID: "d1"}))
			require.NoError(t, s.SaveDevice(ctx, types.Device{ID: "d1", Connected: true}))

			usage, err := s.StorageUsage(ctx)
			require.NoError(t, err)

			alerts, _ := s.GetAlerts(ctx)
			messages, _ := s.GetMessages(ctx)
			devices, _ := s.GetDevices(ctx)
			assert.Equal(t, len(alerts), usage.AlertsCount)
			assert.Equal(t, len(messages), usage.MessagesCount)
			assert.Equal(t, len(devices), usage.DevicesCount)
			assert.Equal(t, 3, usage.AlertsCount)
			assert.Equal(t, 2, usage.MessagesCount)
			assert.Equal(t, 1, usage.DevicesCount)
			assert.Positive(t, usage.TotalBytes)
		},
	},
	{
		Name: "merge appends both collections without dedup",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()
			local := SampleAlert("1")
			require.NoError(t, s.SaveAlert(ctx, local))

			remote := []types.Alert{SampleAlert("1"), SampleAlert("2")}
			msgs := []types.Message{SampleMessage("m1")}
			require.NoError(t, s.Merge(ctx, remote, msgs))

			alerts, err := s.GetAlerts(ctx)
			require.NoError(t, err)
			assert.Equal(t, []types.Alert{local, remote[0], remote[1]}, alerts)

			messages, err := s.GetMessages(ctx)
			require.NoError(t, err)
			assert.Equal(t, msgs, messages)
		},
	},
	{
		Name: "concurrent saves lose no updates",
		Run: func(t *testing.T, s RecordStore) {
			ctx := context.Background()
			const workers, perWorker = 6, 5

			var wg sync.WaitGroup
			errs := make(chan error, workers*perWorker*2)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						errs <- s.SaveAlert(ctx, SampleAlert(fmt.Sprintf("%d-%d", w, i)))
						errs <- s.SaveDevice(ctx, types.Device{ID: fmt.Sprintf("d%d", i)})
					}
				}(w)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			alerts, err := s.GetAlerts(ctx)
			require.NoError(t, err)
			assert.Len(t, alerts, workers*perWorker)

			devices, err := s.GetDevices(ctx)
			require.NoError(t, err)
			assert.Len(t, devices, perWorker)
		},
	},
}
