package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"

	"github.com/zombor/smartreceipt/internal/receipt"
)

// panickingBackend blows up on GetReceipt to exercise the recover middleware
type panickingBackend struct {
	*mockBackend
}

func (panickingBackend) GetReceipt(ctx context.Context, id receipt.ID) (*receipt.Receipt, error) {
	panic("boom")
}

var _ = Describe("Server", func() {
	var (
		backend     *mockBackend
		controller  *Controller
		server      *Server
		ghttpServer *ghttp.Server
	)

	// handle allows n requests against the dashboard
	handle := func(n int) {
		for i := 0; i < n; i++ {
			ghttpServer.AppendHandlers(server.ServeHTTP)
		}
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	do := func(method, path string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	BeforeEach(func() {
		backend = newMockBackend(
			newReceipt("1", "Pizza Palace", receipt.Restaurant, "20.00"),
			newReceipt("2", "Fresh Mart", receipt.Groceries, "8.50"),
			newReceipt("3", "Salad Stop", receipt.Restaurant, "9.00"),
		)
		controller = NewControllerWithClock(backend, fixedClock{now: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)})
		server = NewServerWithMux(controller, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	Describe("GET /healthz", func() {
		It("should report ok", func() {
			handle(1)
			resp := do(http.MethodGet, "/healthz", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body map[string]string
			decode(resp, &body)
			Expect(body["status"]).To(Equal("ok"))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			handle(1)
			resp := do(http.MethodOptions, "/api/receipts", nil, "")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("GET /api/receipts", func() {
		It("should list every receipt by default", func() {
			handle(1)
			resp := do(http.MethodGet, "/api/receipts", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body receiptsResponse
			decode(resp, &body)
			Expect(body.Count).To(Equal(3))
			Expect(body.HasActiveFilters).To(BeFalse())
		})

		It("should fetch by category and search locally", func() {
			handle(2)
			resp := do(http.MethodGet, "/api/receipts?category=restaurant", nil, "")
			var body receiptsResponse
			decode(resp, &body)
			Expect(body.Count).To(Equal(2))

			resp = do(http.MethodGet, "/api/receipts?category=restaurant&q=salad", nil, "")
			decode(resp, &body)
			Expect(body.Count).To(Equal(1))
			Expect(body.Receipts[0].MerchantName).To(Equal("Salad Stop"))
			Expect(backend.calls()).To(Equal([]receipt.Category{receipt.Restaurant}))
		})

		It("should describe an empty search", func() {
			handle(1)
			resp := do(http.MethodGet, "/api/receipts?q=nothing", nil, "")
			var body receiptsResponse
			decode(resp, &body)
			Expect(body.IsEmpty).To(BeTrue())
			Expect(body.EmptyMessage).To(Equal("No receipts found"))
			Expect(body.EmptyHint).To(Equal("Try a different search term"))
		})

		It("should flag receipts whose total is not subtotal plus tax", func() {
			odd := newReceipt("4", "Gas Stop", receipt.Gas, "30.00")
			odd.Tax = decimal.RequireFromString("2.00")
			backend.receipts = append(backend.receipts, odd)

			handle(1)
			resp := do(http.MethodGet, "/api/receipts", nil, "")
			var body receiptsResponse
			decode(resp, &body)
			Expect(body.Unbalanced).To(Equal([]receipt.ID{"4"}))
		})

		It("should reject an unknown category", func() {
			handle(1)
			resp := do(http.MethodGet, "/api/receipts?category=yachts", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
			Expect(backend.calls()).To(BeEmpty())
		})
	})

	Describe("POST /api/filters/clear", func() {
		It("should reset category and query and return every receipt", func() {
			handle(2)
			resp := do(http.MethodGet, "/api/receipts?category=restaurant&q=salad", nil, "")
			resp.Body.Close()

			resp = do(http.MethodPost, "/api/filters/clear", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body receiptsResponse
			decode(resp, &body)
			Expect(body.Count).To(Equal(3))
			Expect(body.Query).To(BeEmpty())
			Expect(body.HasActiveFilters).To(BeFalse())
			Expect(controller.Category()).To(Equal(receipt.AllCategories))
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		It("should return the receipt", func() {
			handle(1)
			resp := do(http.MethodGet, "/api/receipts/2", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body receipt.Receipt
			decode(resp, &body)
			Expect(body.MerchantName).To(Equal("Fresh Mart"))
		})

		It("should pass through a backend 404", func() {
			handle(1)
			resp := do(http.MethodGet, "/api/receipts/99", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			var body map[string]string
			decode(resp, &body)
			Expect(body["error"]).To(Equal("Receipt not found"))
		})
	})

	Describe("DELETE /api/receipts/{id}", func() {
		It("should delete and leave a notification", func() {
			handle(2)
			resp := do(http.MethodDelete, "/api/receipts/1", nil, "")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(backend.deleted).To(Equal([]receipt.ID{"1"}))

			resp = do(http.MethodGet, "/api/notifications", nil, "")
			var body []map[string]any
			decode(resp, &body)
			Expect(body).To(HaveLen(1))
			Expect(body[0]["type"]).To(Equal("success"))
			Expect(body[0]["message"]).To(Equal("Receipt deleted"))
		})
	})

	Describe("POST /api/upload", func() {
		upload := func(filename string, data []byte) *http.Response {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("file", filename)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())
			return do(http.MethodPost, "/api/upload", &buf, mw.FormDataContentType())
		}

		It("should forward an image to the backend", func() {
			handle(1)
			resp := upload("receipt.png", []byte("\x89PNG\r\n\x1a\n"))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			var body receipt.Receipt
			decode(resp, &body)
			Expect(body.MerchantName).To(Equal("Uploaded Store"))

			Expect(backend.uploads).To(HaveLen(1))
			Expect(backend.uploads[0].Filename).To(Equal("receipt.png"))
			Expect(backend.uploads[0].ContentType).To(Equal("image/png"))
		})

		It("should reject other file types", func() {
			handle(1)
			resp := upload("receipt.pdf", []byte("%PDF-1.4 fake"))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var body map[string]string
			decode(resp, &body)
			Expect(body["error"]).To(Equal("Invalid file type. Please upload JPG or PNG"))
			Expect(backend.uploads).To(BeEmpty())
		})

		It("should require a file", func() {
			handle(1)
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			Expect(mw.WriteField("note", "hi")).To(Succeed())
			Expect(mw.Close()).To(Succeed())
			resp := do(http.MethodPost, "/api/upload", &buf, mw.FormDataContentType())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/refresh", func() {
		It("should refresh and confirm", func() {
			handle(1)
			resp := do(http.MethodPost, "/api/refresh", nil, "")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(controller.Loaded()).To(BeTrue())
			Expect(controller.Notifications()[0].Message).To(Equal("Data refreshed"))
		})
	})

	Describe("GET /api/export.csv", func() {
		It("should send the receipts as a CSV attachment", func() {
			handle(1)
			resp := do(http.MethodGet, "/api/export.csv", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/csv; charset=utf-8"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("smartreceipt_export_2024-03-05.csv"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(HavePrefix("Date,Time,Merchant,"))
			Expect(bytes.Count(body, []byte("\n"))).To(Equal(4))
		})

		It("should refuse an empty export", func() {
			handle(2)
			resp := do(http.MethodGet, "/api/receipts?category=gas", nil, "")
			resp.Body.Close()

			resp = do(http.MethodGet, "/api/export.csv", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			var body map[string]string
			decode(resp, &body)
			Expect(body["error"]).To(Equal("No receipts to export"))
		})
	})

	Describe("GET /api/analytics", func() {
		It("should return the summary with breakdowns", func() {
			handle(1)
			resp := do(http.MethodGet, "/api/analytics", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				TotalReceipts int    `json:"total_receipts"`
				TotalSpent    string `json:"total_spent"`
				Empty         bool   `json:"empty"`
				Categories    []struct {
					Key   string `json:"key"`
					Label string `json:"label"`
				} `json:"categories"`
			}
			decode(resp, &body)
			Expect(body.TotalReceipts).To(Equal(3))
			Expect(body.TotalSpent).To(Equal("37.5"))
			Expect(body.Empty).To(BeFalse())
			Expect(body.Categories).To(HaveLen(2))
			Expect(body.Categories[0].Key).To(Equal("groceries"))
			Expect(body.Categories[1].Key).To(Equal("restaurant"))
		})
	})

	Describe("GET /api/analytics while a newer fetch is in flight", func() {
		It("should answer 503 instead of an empty summary", func() {
			first := backend.gateAnalytics()
			second := backend.gateAnalytics()
			handle(1)

			responses := make(chan *http.Response, 1)
			go func() {
				defer GinkgoRecover()
				resp, err := http.Get(ghttpServer.URL() + "/api/analytics")
				Expect(err).NotTo(HaveOccurred())
				responses <- resp
			}()
			Eventually(backend.analyticsCallCount).Should(Equal(1))

			newer := make(chan error, 1)
			go func() {
				newer <- controller.LoadAnalytics(context.Background())
			}()
			Eventually(backend.analyticsCallCount).Should(Equal(2))

			close(first)
			var resp *http.Response
			Eventually(responses).Should(Receive(&resp))
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			var body map[string]string
			decode(resp, &body)
			Expect(body["error"]).NotTo(BeEmpty())

			close(second)
			Eventually(newer).Should(Receive(BeNil()))
			_, ok := controller.Summary()
			Expect(ok).To(BeTrue())
		})
	})

	Describe("GET /api/categories", func() {
		It("should list the registry with All first", func() {
			handle(1)
			resp := do(http.MethodGet, "/api/categories", nil, "")
			var body []map[string]string
			decode(resp, &body)
			Expect(body).To(HaveLen(9))
			Expect(body[0]["value"]).To(Equal(""))
			Expect(body[0]).NotTo(HaveKey("color"))
			Expect(body[1]["value"]).To(Equal("groceries"))
			Expect(body[1]["color"]).NotTo(BeEmpty())
		})
	})

	Describe("DELETE /api/notifications/{id}", func() {
		It("should 404 on an unknown notification", func() {
			handle(1)
			resp := do(http.MethodDelete, "/api/notifications/nope", nil, "")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("recover middleware", func() {
		It("should turn a panic into a reload prompt", func() {
			controller = NewController(panickingBackend{backend})
			server = NewServerWithMux(controller, http.NewServeMux())
			handle(1)

			resp := do(http.MethodGet, "/api/receipts/1", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			var body map[string]string
			decode(resp, &body)
			Expect(body["error"]).To(Equal("Something went wrong"))
			Expect(body["action"]).To(Equal("reload"))
		})
	})
})
