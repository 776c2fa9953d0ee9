package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/truefoundry/idlefleet/pkg/capacity"
	"github.com/truefoundry/idlefleet/pkg/messages"
	"github.com/truefoundry/idlefleet/switcher/internal/prom"
	"go.uber.org/zap"
)

// fakeFleet records calls made to both resources in order
type fakeFleet struct {
	calls      []string
	groups     []capacity.GroupCapacity
	services   []capacity.ServiceCapacity
	groupErr   error
	serviceErr error
	deadline   bool
}

func (f *fakeFleet) UpdateGroup(ctx context.Context, groupName string, c capacity.GroupCapacity) error {
	_, f.deadline = ctx.Deadline()
	f.calls = append(f.calls, "group:"+groupName)
	f.groups = append(f.groups, c)
	return f.groupErr
}

func (f *fakeFleet) UpdateService(_ context.Context, cluster, service string, c capacity.ServiceCapacity) error {
	f.calls = append(f.calls, "service:"+cluster+"/"+service)
	f.services = append(f.services, c)
	return f.serviceErr
}

var _ = Describe("Switcher server", func() {
	var (
		fleet    *fakeFleet
		settings capacity.ScaleUpSettings
		handler  http.Handler
	)

	invoke := func(method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/invoke", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	decodeStatus := func(rec *httptest.ResponseRecorder) string {
		var resp messages.StatusResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp.Status
	}

	decodeError := func(rec *httptest.ResponseRecorder) messages.ErrorResponse {
		var resp messages.ErrorResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	BeforeEach(func() {
		fleet = &fakeFleet{}
		settings = capacity.ScaleUpSettings{MinSize: "1", DesiredCapacity: "2", MaxSize: "4", ServiceDesiredCount: "2"}
	})

	JustBeforeEach(func() {
		controller, err := capacity.NewController(zap.NewNop(), capacity.Config{
			GroupName:   "workers-asg",
			ClusterName: "gpu-cluster",
			ServiceName: "inference",
			ScaleUp:     settings,
		}, fleet, fleet)
		Expect(err).NotTo(HaveOccurred())
		handler = NewServer(zap.NewNop(), controller, 5*time.Second).Routes()
	})

	Context("with a scale_down action", func() {
		It("applies the zero target group first and reports scaled down", func() {
			before := testutil.ToFloat64(prom.ActionCounter.WithLabelValues("scale_down", "scaled down", "success"))

			rec := invoke(http.MethodPost, `{"action":"scale_down"}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(decodeStatus(rec)).To(Equal("scaled down"))
			Expect(fleet.calls).To(Equal([]string{"group:workers-asg", "service:gpu-cluster/inference"}))
			Expect(fleet.groups).To(ConsistOf(capacity.GroupCapacity{}))
			Expect(fleet.services).To(ConsistOf(capacity.ServiceCapacity{}))
			Expect(fleet.deadline).To(BeTrue())

			after := testutil.ToFloat64(prom.ActionCounter.WithLabelValues("scale_down", "scaled down", "success"))
			Expect(after - before).To(Equal(1.0))
		})

		It("converges when repeated", func() {
			Expect(invoke(http.MethodPost, `{"action":"scale_down"}`).Code).To(Equal(http.StatusOK))
			Expect(invoke(http.MethodPost, `{"action":"scale_down"}`).Code).To(Equal(http.StatusOK))
			Expect(fleet.groups).To(HaveLen(2))
			Expect(fleet.groups[0]).To(Equal(fleet.groups[1]))
		})
	})

	Context("with a scale_up action", func() {
		It("applies the configured target", func() {
			rec := invoke(http.MethodPost, `{"action":"scale_up","source":"schedule"}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decodeStatus(rec)).To(Equal("scaled up"))
			Expect(fleet.groups).To(ConsistOf(capacity.GroupCapacity{Min: 1, Desired: 2, Max: 4}))
			Expect(fleet.services).To(ConsistOf(capacity.ServiceCapacity{DesiredCount: 2}))
		})

		When("the settings violate min <= desired <= max", func() {
			BeforeEach(func() {
				settings.MinSize = "5"
			})

			It("fails with a configuration error and touches nothing", func() {
				rec := invoke(http.MethodPost, `{"action":"scale_up"}`)
				Expect(rec.Code).To(Equal(http.StatusInternalServerError))
				resp := decodeError(rec)
				Expect(resp.Kind).To(Equal(messages.ErrorKindConfiguration))
				Expect(fleet.calls).To(BeEmpty())
			})
		})
	})

	Context("with an unknown or missing action", func() {
		DescribeTable("returns no action without side effects",
			func(body string) {
				rec := invoke(http.MethodPost, body)
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(decodeStatus(rec)).To(Equal("no action"))
				Expect(fleet.calls).To(BeEmpty())
			},
			Entry("missing action", `{}`),
			Entry("empty body", ``),
			Entry("null body", `null`),
			Entry("unknown action", `{"action":"reboot"}`),
			Entry("numeric action", `{"action":7}`),
		)
	})

	Context("when the group update fails", func() {
		BeforeEach(func() {
			fleet.groupErr = errors.New("AccessDenied")
		})

		It("never calls the service and names the group stage", func() {
			before := testutil.ToFloat64(prom.StageFailureCounter.WithLabelValues("scaling-group", "false"))

			rec := invoke(http.MethodPost, `{"action":"scale_up"}`)
			Expect(rec.Code).To(Equal(http.StatusBadGateway))
			resp := decodeError(rec)
			Expect(resp.Kind).To(Equal(messages.ErrorKindUpdateFailed))
			Expect(resp.Stage).To(Equal("scaling-group"))
			Expect(resp.Applied).To(BeEmpty())
			Expect(fleet.calls).To(Equal([]string{"group:workers-asg"}))

			after := testutil.ToFloat64(prom.StageFailureCounter.WithLabelValues("scaling-group", "false"))
			Expect(after - before).To(Equal(1.0))
		})
	})

	Context("when the service update fails", func() {
		BeforeEach(func() {
			fleet.serviceErr = errors.New("ServiceNotActiveException")
		})

		It("surfaces the partial application", func() {
			rec := invoke(http.MethodPost, `{"action":"scale_down"}`)
			Expect(rec.Code).To(Equal(http.StatusBadGateway))
			resp := decodeError(rec)
			Expect(resp.Stage).To(Equal("service"))
			Expect(resp.Applied).To(Equal([]string{"scaling-group"}))
		})
	})

	Context("with a malformed request", func() {
		It("rejects invalid JSON", func() {
			rec := invoke(http.MethodPost, `{"action":`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(rec).Kind).To(Equal(messages.ErrorKindBadRequest))
			Expect(fleet.calls).To(BeEmpty())
		})

		DescribeTable("rejects trailing data after the object",
			func(body string) {
				rec := invoke(http.MethodPost, body)
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(decodeError(rec).Kind).To(Equal(messages.ErrorKindBadRequest))
				Expect(fleet.calls).To(BeEmpty())
			},
			Entry("garbage", `{"action":"scale_down"}garbage`),
			Entry("second object", `{"action":"scale_down"} {"action":"scale_up"}`),
		)

		It("accepts trailing whitespace", func() {
			rec := invoke(http.MethodPost, "{\"action\":\"scale_down\"}\n")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(fleet.calls).To(HaveLen(2))
		})

		It("rejects a JSON array", func() {
			rec := invoke(http.MethodPost, `["scale_up"]`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects other methods", func() {
			rec := invoke(http.MethodGet, "")
			Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(rec.Header().Get("Allow")).To(Equal(http.MethodPost))
		})
	})

	It("serves health and metrics", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})
