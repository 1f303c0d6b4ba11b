package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hearthline/hearthline/pkg/assetcache"
	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/cache/inmemory"
	"github.com/hearthline/hearthline/pkg/connectivity"
	"github.com/hearthline/hearthline/pkg/mesh"
	"github.com/hearthline/hearthline/pkg/mesh/mocks"
	"github.com/hearthline/hearthline/pkg/store"
	"github.com/hearthline/hearthline/pkg/syncer"
	"github.com/hearthline/hearthline/pkg/types"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func newCache() cache.Cache {
	c, err := inmemory.NewCache(&inmemory.Config{DefaultExpiration: 300, CleanupInterval: 600})
	Expect(err).NotTo(HaveOccurred())
	return c
}

func newService(network mesh.Network, c cache.Cache, assets *assetcache.Manager) (*Service, *store.Store) {
	s, err := store.New(c)
	Expect(err).NotTo(HaveOccurred())

	coordinator, err := syncer.New(network, s)
	Expect(err).NotTo(HaveOccurred())

	svc, err := New(Dependencies{
		Store:   s,
		Network: network,
		Syncer:  coordinator,
		Monitor: connectivity.NewMonitor(nil, true),
		Assets:  assets,
	})
	Expect(err).NotTo(HaveOccurred())

	ids := 0
	svc.now = func() time.Time { return fixedNow }
	svc.newID = func() (string, error) {
		ids++
		return "id-" + string(rune('0'+ids)), nil
	}
	return svc, s
}

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		network *mesh.Simulated
		svc     *Service
		records *store.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		network = mesh.NewSimulated([]types.Device{
			{ID: "device-1", Name: "Emergency Radio", Connected: true},
		})
		svc, records = newService(network, newCache(), nil)
	})

	Describe("New", func() {
		It("requires every collaborator", func() {
			_, err := New(Dependencies{})
			Expect(err).To(HaveOccurred())
		})

		It("defaults the sender", func() {
			Expect(svc.defaultSender).To(Equal(DefaultSender))
		})
	})

	Describe("CreateAlert", func() {
		It("saves an active alert and broadcasts it", func() {
			alert, err := svc.CreateAlert(ctx, AlertInput{Type: types.AlertTypeMedical, Details: "  injured hiker  "})
			Expect(err).NotTo(HaveOccurred())
			Expect(alert.ID).To(Equal("id-1"))
			Expect(alert.Details).To(Equal("injured hiker"))
			Expect(alert.Status).To(Equal(types.AlertStatusActive))
			Expect(alert.Timestamp).To(Equal("2024-03-01T12:30:00.000Z"))

			alerts, err := svc.Alerts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(alerts).To(Equal([]types.Alert{*alert}))

			sent, _ := network.Sent()
			Expect(sent).To(Equal([]types.Alert{*alert}))
		})

		It("rejects blank details without saving", func() {
			_, err := svc.CreateAlert(ctx, AlertInput{Type: types.AlertTypeOther, Details: "   "})
			Expect(errors.Is(err, types.ErrInvalidRecord)).To(BeTrue())

			alerts, err := svc.Alerts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(alerts).To(BeEmpty())
		})

		It("rejects unknown types", func() {
			_, err := svc.CreateAlert(ctx, AlertInput{Type: "flood", Details: "water rising"})
			Expect(errors.Is(err, types.ErrInvalidRecord)).To(BeTrue())
		})

		It("keeps the alert when the broadcast fails", func() {
			network.SetReachable(false)

			alert, err := svc.CreateAlert(ctx, AlertInput{Type: types.AlertTypeSecurity, Details: "gate forced"})
			Expect(err).NotTo(HaveOccurred())

			alerts, err := svc.Alerts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(alerts).To(ConsistOf(*alert))
		})
	})

	Describe("SendMessage", func() {
		It("uses the default sender", func() {
			message, err := svc.SendMessage(ctx, MessageInput{Text: " on my way "})
			Expect(err).NotTo(HaveOccurred())
			Expect(message.Sender).To(Equal("You"))
			Expect(message.Text).To(Equal("on my way"))

			_, sent := network.Sent()
			Expect(sent).To(HaveLen(1))
		})

		It("keeps an explicit sender", func() {
			message, err := svc.SendMessage(ctx, MessageInput{Text: "copy", Sender: "Base"})
			Expect(err).NotTo(HaveOccurred())
			Expect(message.Sender).To(Equal("Base"))
		})

		It("rejects an empty text", func() {
			_, err := svc.SendMessage(ctx, MessageInput{Text: ""})
			Expect(errors.Is(err, types.ErrInvalidRecord)).To(BeTrue())
		})
	})

	Describe("devices", func() {
		It("upserts registered devices", func() {
			_, err := svc.RegisterDevice(ctx, types.Device{ID: "d1", Name: "Radio"})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.RegisterDevice(ctx, types.Device{ID: "d1", Name: "Radio 2", Connected: true})
			Expect(err).NotTo(HaveOccurred())

			devices, err := svc.Devices(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(Equal([]types.Device{{ID: "d1", Name: "Radio 2", Connected: true}}))
		})

		It("rejects a device without id", func() {
			_, err := svc.RegisterDevice(ctx, types.Device{Name: "nameless"})
			Expect(errors.Is(err, types.ErrInvalidRecord)).To(BeTrue())
		})

		It("scans without persisting", func() {
			devices, err := svc.ScanDevices(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(HaveLen(1))

			stored, err := svc.Devices(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(BeEmpty())
		})
	})

	Describe("Sync", func() {
		It("merges delivered records and reports them in the status", func() {
			network.Deliver(
				[]types.Alert{store.SampleAlert("remote")},
				[]types.Message{store.SampleMessage("remote-m")},
			)

			result, err := svc.Sync(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.AlertsMerged).To(Equal(1))
			Expect(result.Committed).To(BeTrue())

			status, err := svc.Status(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Online).To(BeTrue())
			Expect(status.LastSync.AlertsMerged).To(Equal(1))
			Expect(status.Usage.AlertsCount).To(Equal(1))
			Expect(status.Usage.MessagesCount).To(Equal(1))

			// the committed batch is not merged twice
			result, err = svc.Sync(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.AlertsMerged).To(BeZero())
		})

		It("surfaces an unreachable mesh", func() {
			network.SetReachable(false)
			_, err := svc.Sync(ctx)
			Expect(errors.Is(err, syncer.ErrSyncUnavailable)).To(BeTrue())
		})
	})

	Describe("Reset", func() {
		It("clears every collection", func() {
			_, err := svc.CreateAlert(ctx, AlertInput{Type: types.AlertTypeResource, Details: "need water"})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.SendMessage(ctx, MessageInput{Text: "ok"})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.RegisterDevice(ctx, types.Device{ID: "d1"})
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.Reset(ctx)).To(Succeed())

			usage, err := svc.Usage(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(*usage).To(Equal(store.Usage{}))
			Expect(records.Keys().Alerts).To(Equal("hearthline_alerts"))
		})
	})

	Describe("connectivity", func() {
		It("reports manual transitions", func() {
			status := svc.SetOnline(ctx, false)
			Expect(status.Online).To(BeFalse())
			Expect(svc.Connectivity().Online).To(BeFalse())
		})
	})
})

var _ = Describe("Service with a mocked mesh", func() {
	var (
		ctx     context.Context
		ctrl    *gomock.Controller
		network *mocks.MockNetwork
		svc     *Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		ctrl = gomock.NewController(GinkgoT())
		network = mocks.NewMockNetwork(ctrl)
		svc, _ = newService(network, newCache(), nil)
	})

	It("saves before broadcasting", func() {
		network.EXPECT().BroadcastMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, m types.Message) error {
				messages, err := svc.Messages(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(messages).To(ConsistOf(m))
				return mesh.ErrUnavailable
			})

		_, err := svc.SendMessage(ctx, MessageInput{Text: "hello"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("does not broadcast an alert that failed to save", func() {
		failing := &failingCache{Cache: newCache()}
		svc, _ = newService(network, failing, nil)

		_, err := svc.CreateAlert(ctx, AlertInput{Type: types.AlertTypeMedical, Details: "x"})
		Expect(errors.Is(err, store.ErrStorageWriteFailed)).To(BeTrue())
	})
})

var _ = Describe("Precache", func() {
	var (
		ctx    context.Context
		origin *httptest.Server
		down   bool
		svc    *Service
		assets *assetcache.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		down = false
		origin = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if down {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("content of " + r.URL.Path))
		}))
		DeferCleanup(origin.Close)

		c := newCache()
		var err error
		assets, err = assetcache.New(c, &http.Client{Timeout: 2 * time.Second}, origin.URL)
		Expect(err).NotTo(HaveOccurred())
		svc, _ = newService(mesh.NewSimulated(nil), c, assets)
	})

	manifest := func(version string) *assetcache.Manifest {
		return &assetcache.Manifest{
			Version:   version,
			Fallback:  "./index.html",
			Resources: []string{"./", "./index.html"},
		}
	}

	It("installs and activates a generation", func() {
		tag, err := svc.Precache(ctx, manifest("v1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(tag).To(Equal("v1"))

		status, err := svc.Status(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.ActiveGeneration).To(Equal("v1"))
	})

	It("keeps the previous generation when the install fails", func() {
		_, err := svc.Precache(ctx, manifest("v1"))
		Expect(err).NotTo(HaveOccurred())

		down = true
		tag, err := svc.Precache(ctx, manifest("v2"))
		Expect(errors.Is(err, assetcache.ErrCacheInstallFailed)).To(BeTrue())
		Expect(tag).To(Equal("v1"))

		generations, err := assets.Generations(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(generations).To(Equal([]string{"v1"}))
	})

	It("fails without an asset cache", func() {
		plain, _ := newService(mesh.NewSimulated(nil), newCache(), nil)
		_, err := plain.Precache(ctx, manifest("v1"))
		Expect(err).To(HaveOccurred())
	})
})

// failingCache rejects every transaction
type failingCache struct {
	cache.Cache
}

func (f *failingCache) Update(ctx context.Context, fn func(tx cache.Tx) error, keys ...string) error {
	return errors.New("disk full")
}
