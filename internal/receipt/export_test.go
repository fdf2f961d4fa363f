package receipt

import (
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type mockDownloader struct {
	calls    int
	data     []byte
	filename string
	err      error
}

func (m *mockDownloader) TriggerDownload(data []byte, filename string) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.data = data
	m.filename = filename
	return nil
}

func joesDiner() Receipt {
	return Receipt{
		ID:           "1",
		MerchantName: "Joe's Diner",
		Date:         "2024-03-01",
		Category:     Restaurant,
		Items:        []Item{{Name: "Burger", Quantity: 2, Price: dec("5.5")}},
		Subtotal:     dec("11.00"),
		Tax:          dec("0.88"),
		Total:        dec("11.88"),
		Filename:     "joes.jpg",
	}
}

var _ = Describe("Export", func() {
	var (
		downloader *mockDownloader
		exporter   *Exporter
		now        time.Time
	)

	BeforeEach(func() {
		downloader = &mockDownloader{}
		now = time.Date(2026, 10, 15, 23, 30, 0, 0, time.UTC)
		exporter = NewExporterWithClock(downloader, fixedClock{now: now})
	})

	Describe("Export", func() {
		When("there are no receipts", func() {
			It("should report ErrEmptyExport", func() {
				_, err := exporter.Export(nil)
				Expect(err).To(MatchError(ErrEmptyExport))
			})

			It("should not trigger a download", func() {
				_, _ = exporter.Export([]Receipt{})
				Expect(downloader.calls).To(BeZero())
			})
		})

		When("there is one receipt", func() {
			var (
				filename string
				err      error
			)

			JustBeforeEach(func() {
				filename, err = exporter.Export([]Receipt{joesDiner()})
			})

			It("should name the file after the export date", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filename).To(Equal("smartreceipt_export_2026-10-15.csv"))
				Expect(downloader.filename).To(Equal(filename))
			})

			It("should write the header and the row", func() {
				Expect(string(downloader.data)).To(Equal(
					"Date,Time,Merchant,Category,Subtotal,Tax,Total,Payment Method,Items,Item Count\n" +
						"2024-03-01,,\"Joe's Diner\",restaurant,11.00,0.88,11.88,,\"2x Burger ($5.50)\",1\n",
				))
			})
		})

		When("the downloader fails", func() {
			It("should return the wrapped error", func() {
				downloader.err = errors.New("disk full")
				_, err := exporter.Export([]Receipt{joesDiner()})
				Expect(err).To(MatchError(ContainSubstring("disk full")))
			})
		})
	})

	Describe("ExportFilename", func() {
		It("should use the UTC date", func() {
			loc := time.FixedZone("UTC+10", 10*60*60)
			t := time.Date(2024, 1, 1, 5, 0, 0, 0, loc)
			Expect(ExportFilename(t)).To(Equal("smartreceipt_export_2023-12-31.csv"))
		})
	})

	Describe("WriteCSV", func() {
		var receipts []Receipt

		BeforeEach(func() {
			second := Receipt{
				ID:            "2",
				MerchantName:  "Shop, Inc",
				Date:          "2024-03-02",
				Time:          "09:15",
				Category:      Category("pets"),
				Subtotal:      dec("3"),
				Tax:           dec("0.125"),
				Total:         dec("3.125"),
				PaymentMethod: "Cash",
				Items: []Item{
					{Name: "Kibble", Quantity: 1, Price: dec("2")},
					{Name: "Treats, small", Quantity: 3, Price: dec("0.3333")},
				},
			}
			quoted := Receipt{
				ID:           "3",
				MerchantName: `The "Best" Cafe`,
				Date:         "2024-03-03",
				Category:     Restaurant,
				Items:        []Item{{Name: `6" Sub`, Quantity: 1, Price: dec("7")}},
				Subtotal:     dec("7"),
				Tax:          dec("0"),
				Total:        dec("7"),
			}
			receipts = []Receipt{joesDiner(), second, quoted}
		})

		It("should render money with two fraction digits", func() {
			var b strings.Builder
			Expect(WriteCSV(&b, receipts[1:2])).To(Succeed())
			Expect(b.String()).To(ContainSubstring(",3.00,0.13,3.13,Cash,"))
		})

		It("should join items with a semicolon", func() {
			Expect(FormatItems(receipts[1].Items)).To(Equal("1x Kibble ($2.00); 3x Treats, small ($0.33)"))
		})

		It("should escape embedded quotes", func() {
			var b strings.Builder
			Expect(WriteCSV(&b, receipts[2:])).To(Succeed())
			Expect(b.String()).To(ContainSubstring(`"The ""Best"" Cafe"`))
		})

		It("should round-trip through a standard CSV reader", func() {
			var b strings.Builder
			Expect(WriteCSV(&b, receipts)).To(Succeed())

			rows, err := csv.NewReader(strings.NewReader(b.String())).ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(4))
			Expect(rows[0]).To(Equal(csvHeader))
			for i, r := range receipts {
				row := rows[i+1]
				Expect(row).To(HaveLen(10))
				Expect(row[2]).To(Equal(r.MerchantName))
				Expect(row[6]).To(Equal(r.Total.StringFixed(2)))
				Expect(row[8]).To(Equal(FormatItems(r.Items)))
			}
			Expect(rows[2][9]).To(Equal("2"))
		})
	})

	Describe("DirDownloader", func() {
		It("should write the export into the directory", func() {
			dir := filepath.Join(GinkgoT().TempDir(), "exports")
			d, err := NewDirDownloader(dir)
			Expect(err).NotTo(HaveOccurred())

			Expect(d.TriggerDownload([]byte("a,b\n"), "out.csv")).To(Succeed())
			Expect(d.Path("out.csv")).To(BeAnExistingFile())
		})

		It("should not escape the directory", func() {
			dir := GinkgoT().TempDir()
			d, err := NewDirDownloader(dir)
			Expect(err).NotTo(HaveOccurred())

			Expect(d.TriggerDownload([]byte("x"), "../escape.csv")).To(Succeed())
			Expect(filepath.Join(dir, "escape.csv")).To(BeAnExistingFile())
		})
	})
})
